package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int      `yaml:"port"`
	Origin          string   `yaml:"origin"`
	Redis           string   `yaml:"redis"`
	TrackingDB      string   `yaml:"trackingDb"`
	Locales         []string `yaml:"locales"`
	DefaultLocale   string   `yaml:"defaultLocale"`
	CacheEnabled    bool     `yaml:"cacheEnabled"`
	TrackingEnabled bool     `yaml:"trackingEnabled"`
	CleanupEnabled  bool     `yaml:"cleanupEnabled"`
	FullStack       bool     `yaml:"fullStack"`
	Debug           bool     `yaml:"debug"`
}

func defaultConfig() Config {
	return Config{
		Port:            8080,
		Redis:           "localhost:6379",
		TrackingDB:      "tracking.db",
		DefaultLocale:   "en",
		CacheEnabled:    true,
		TrackingEnabled: true,
		CleanupEnabled:  true,
		FullStack:       true,
	}
}

func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
