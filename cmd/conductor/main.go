package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/conductor-telemetry/conductor/pkg/api"
	"github.com/conductor-telemetry/conductor/pkg/auth"
	"github.com/conductor-telemetry/conductor/pkg/logging"
	"github.com/conductor-telemetry/conductor/pkg/metrics"
	"github.com/conductor-telemetry/conductor/pkg/ratelimit"
	"github.com/conductor-telemetry/conductor/pkg/shutdown"
	"github.com/conductor-telemetry/conductor/pkg/store"
	"github.com/conductor-telemetry/conductor/pkg/tlsutil"
	"github.com/conductor-telemetry/conductor/pkg/tracing"
)

// fileConfig is the optional YAML config file. Flags override it.
type fileConfig struct {
	Port        int     `yaml:"port"`
	MetricsPort int     `yaml:"metrics_port"`
	LogLevel    string  `yaml:"log_level"`
	LogJSON     bool    `yaml:"log_json"`
	RateLimit   float64 `yaml:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst"`
	APIKey      string  `yaml:"api_key"`

	Database struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
		Path string `yaml:"path"`
	} `yaml:"database"`

	TLS struct {
		Cert string `yaml:"cert"`
		Key  string `yaml:"key"`
		CA   string `yaml:"ca"`
	} `yaml:"tls"`

	Tracing struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"tracing"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 9090, "API server port")
	metricsPort := flag.Int("metrics-port", 9091, "Prometheus metrics port (0 disables)")
	dbType := flag.String("db", "", "Database backend: quest, sqlite or memory")
	dbDSN := flag.String("db-dsn", "", "QuestDB PostgreSQL wire DSN")
	dbPath := flag.String("db-path", "", "SQLite database file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Log in JSON format")
	rateLimit := flag.Float64("rate-limit", 0, "Per-client requests per second (0 disables)")
	rateBurst := flag.Int("rate-burst", 0, "Per-client burst size")
	apiKey := flag.String("api-key", "", "API key required on all endpoints except /health (or CONDUCTOR_API_KEY)")
	tlsCert := flag.String("tls-cert", "", "TLS certificate file")
	tlsKey := flag.String("tls-key", "", "TLS key file")
	tlsCA := flag.String("tls-ca", "", "CA bundle for client certificate verification (enables mTLS)")
	generateCert := flag.Bool("generate-cert", false, "Generate a self-signed certificate and exit")
	tracingEnabled := flag.Bool("tracing", false, "Enable OpenTelemetry tracing")
	tracingEndpoint := flag.String("tracing-endpoint", "localhost:4318", "OTLP/HTTP collector endpoint")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("conductor %s\n", api.Version)
		return
	}

	if *generateCert {
		cert, key := *tlsCert, *tlsKey
		if cert == "" {
			cert = "conductor.crt"
		}
		if key == "" {
			key = "conductor.key"
		}
		if err := tlsutil.GenerateSelfSignedCert(cert, key, "conductor"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate certificate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s and %s\n", cert, key)
		return
	}

	cfg, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Flags override the config file, which overrides defaults.
	if *port != 9090 || cfg.Port == 0 {
		cfg.Port = *port
	}
	if *metricsPort != 9091 || cfg.MetricsPort == 0 {
		cfg.MetricsPort = *metricsPort
	}
	if *dbType != "" {
		cfg.Database.Type = *dbType
	}
	if *dbDSN != "" {
		cfg.Database.DSN = *dbDSN
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *rateLimit > 0 {
		cfg.RateLimit = *rateLimit
	}
	if *rateBurst > 0 {
		cfg.RateBurst = *rateBurst
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("CONDUCTOR_API_KEY")
	}
	if *tlsCert != "" {
		cfg.TLS.Cert = *tlsCert
	}
	if *tlsKey != "" {
		cfg.TLS.Key = *tlsKey
	}
	if *tlsCA != "" {
		cfg.TLS.CA = *tlsCA
	}
	if *tracingEnabled {
		cfg.Tracing.Enabled = true
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = *tracingEndpoint
	}

	log := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	st, err := store.NewStore(store.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
		Path: cfg.Database.Path,
	})
	if err != nil {
		log.Fatal("failed to open store", map[string]interface{}{"error": err.Error()})
	}

	provider, err := tracing.Init(tracing.Config{
		ServiceName:    "conductor",
		ServiceVersion: api.Version,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("failed to initialize tracing", map[string]interface{}{"error": err.Error()})
	}

	collector := metrics.NewCollector(st)
	handler := api.NewProducerHandler(st, log)
	handler.SetMetricsRecorder(collector)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.Use(tracing.HTTPMiddleware(provider))
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = int(cfg.RateLimit) * 2
		}
		limiter := ratelimit.NewLimiter(cfg.RateLimit, burst)
		router.Use(limiter.Middleware(ratelimit.IPKeyFunc))
		log.Info("rate limiting enabled", map[string]interface{}{"rps": cfg.RateLimit, "burst": burst})
	}
	if cfg.APIKey != "" {
		router.Use(auth.APIKeyMiddleware(cfg.APIKey, "/health"))
		log.Info("API key authentication enabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLS.Cert != "" {
		tlsConfig, err := tlsutil.LoadServerTLSConfig(cfg.TLS.Cert, cfg.TLS.Key, cfg.TLS.CA, cfg.TLS.CA != "")
		if err != nil {
			log.Fatal("failed to load TLS config", map[string]interface{}{"error": err.Error()})
		}
		server.TLSConfig = tlsConfig
	}

	mgr := shutdown.New(30 * time.Second)
	mgr.Register(func(ctx context.Context) error {
		return st.Close()
	})
	mgr.Register(func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	})
	mgr.Register(func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	if cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", collector.Handler())
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: metricsMux,
		}
		mgr.Register(func(ctx context.Context) error {
			return metricsServer.Shutdown(ctx)
		})
		go func() {
			log.Info("metrics server listening", map[string]interface{}{"port": cfg.MetricsPort})
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	go func() {
		log.Info("conductor listening", map[string]interface{}{
			"port":    cfg.Port,
			"store":   cfg.Database.Type,
			"tls":     cfg.TLS.Cert != "",
			"version": api.Version,
		})
		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sig := mgr.Wait()
	log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	for _, err := range mgr.Shutdown() {
		log.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
	log.Info("shutdown complete")
}
