package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/pagestack/pagestack"
	"github.com/pagestack/pagestack/cache"
	"github.com/pagestack/pagestack/track"
)

// cachableHeader is how the origin marks a page as safe to cache. The
// header is consumed here and never reaches the client.
const cachableHeader = "X-Page-Cachable"

var (
	// CLI flags
	configFlag         string
	portFlag           int
	originFlag         string
	redisFlag          string
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.StringVar(&redisFlag, "redis", "", "Redis address for the page cache (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Tracking DB file name (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := defaultConfig()
	if configFlag != "" {
		var err error
		if config, err = getConfig(configFlag); err != nil {
			log.Fatal().Err(err).Str("file", configFlag).Msg("Cannot read config file")
		}
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if originFlag != "" {
		config.Origin = originFlag
	}
	if redisFlag != "" {
		config.Redis = redisFlag
	}
	if dbFilenameFlag != "" {
		config.TrackingDB = dbFilenameFlag
	}
	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	stack := pagestack.New(pagestack.Config{
		Cache:           cache.NewRedisStore(config.Redis),
		Events:          track.NewSQLStore(config.TrackingDB),
		Logger:          &log.Logger,
		Locales:         config.Locales,
		DefaultLocale:   config.DefaultLocale,
		CacheEnabled:    config.CacheEnabled,
		TrackingEnabled: config.TrackingEnabled,
		CleanupEnabled:  config.CleanupEnabled,
		Cleanup: func(r *http.Request) {
			log.Trace().Str("path", r.URL.Path).Msg("Request complete")
		},
		FullStack: config.FullStack,
		Debug:     config.Debug,
	})

	core := stack.Handler(newOriginProxy(originURL))

	router := chi.NewRouter()
	router.Use(hlog.NewHandler(log.Logger))
	router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request served")
	}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/*", core)

	log.Info().Msgf("Serving port %v in front of %s", config.Port, originURL)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), router); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// newOriginProxy fronts the origin application server. The proxy
// translates the origin's cachable marker header into the request flag
// the page cache looks at.
func newOriginProxy(origin *url.URL) http.Handler {
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = origin.Scheme
			req.URL.Host = origin.Host
			req.Host = origin.Host
		},
		ModifyResponse: func(res *http.Response) error {
			if res.Header.Get(cachableHeader) != "" {
				pagestack.MarkCachable(res.Request)
				res.Header.Del(cachableHeader)
			}
			return nil
		},
	}
	return proxy
}
