package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukaan-dev/backend-dukaan/internal/catalog"
	"github.com/dukaan-dev/backend-dukaan/internal/checkout"
	"github.com/dukaan-dev/backend-dukaan/internal/common"
	"github.com/dukaan-dev/backend-dukaan/internal/config"
	"github.com/dukaan-dev/backend-dukaan/internal/coupon"
	"github.com/dukaan-dev/backend-dukaan/internal/db"
	"github.com/dukaan-dev/backend-dukaan/internal/geoip"
	"github.com/dukaan-dev/backend-dukaan/internal/health"
	"github.com/dukaan-dev/backend-dukaan/internal/obs"
	"github.com/dukaan-dev/backend-dukaan/internal/order"
	"github.com/dukaan-dev/backend-dukaan/internal/payment"
	"github.com/dukaan-dev/backend-dukaan/internal/ratelimit"
	"github.com/dukaan-dev/backend-dukaan/internal/region"
	"github.com/dukaan-dev/backend-dukaan/internal/resilience"
	"github.com/dukaan-dev/backend-dukaan/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "dukaan")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "dukaan-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "dukaan-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	home := region.HomeContext(cfg.HomeTaxBps)
	intl := region.IntlContext(cfg.IntlShippingFee)

	strategies := []region.Strategy{
		instrument("explicit_currency", region.ExplicitCurrency(home, intl)),
	}
	if cfg.GeoIPEndpoint != "" {
		geoClient := &geoip.Client{
			Endpoint: cfg.GeoIPEndpoint,
			HTTP: resilience.HTTPClient{
				Client:      &http.Client{},
				Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("geoip").WithLogger(logger),
				BaseBackoff: 100 * time.Millisecond,
				MaxAttempts: 2,
				Timeout:     cfg.GeoIPTimeout,
			},
			Cache:    redisClient,
			CacheTTL: cfg.GeoIPCacheTTL,
		}
		strategies = append(strategies, instrument("geoip", region.GeoIP(geoClient, cfg.HomeCountry, home, intl)))
	} else {
		logger.Warn().Msg("geoip endpoint not configured, skipping geo lookup strategy")
	}
	strategies = append(strategies, instrument("language_tag", region.LanguageTag(cfg.HomeLanguages, home)))
	regions := region.Chain{Strategies: strategies, Default: home}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries: queries,
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Svc: catalogService, Regions: regions}

	couponSvc := &coupon.Service{Q: queries}
	couponHandler := &coupon.Handler{Q: queries, Svc: couponSvc, Validate: validate}

	checkoutSvc := &checkout.Service{
		Q:       queries,
		Pool:    pool,
		Catalog: catalogService,
		Coupons: couponSvc,
		Log:     logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Regions: regions, Validate: validate}

	orderHandler := &order.Handler{Q: queries}

	webhookHandler := payment.Webhook{
		Q:         queries,
		Secret:    cfg.PaymentWebhookSecret,
		Replay:    redisClient,
		ReplayTTL: cfg.IdempotencyTTL,
		Coupons:   couponSvc,
		Log:       logger,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	writeLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: envDurationMillis("RATE_LIMIT_WINDOW_MS", 60000),
			Max:    envInt("RATE_LIMIT_MAX", 60),
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS_ENABLED", true)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_BODY_LIMIT_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Currency", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Deps{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Group(func(g chi.Router) {
			g.Use(writeLimit.Middleware)
			g.Post("/checkout/quote", checkoutHandler.Quote)
			g.Post("/coupons/preview", couponHandler.Preview)
			g.With(idem.Middleware).Post("/checkout", checkoutHandler.Create)
		})

		v.Get("/orders", orderHandler.List)
		v.Get("/orders/{orderId}", orderHandler.Get)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(requireAdminToken(cfg.AdminToken))
			admin.Get("/coupons", couponHandler.List)
			admin.Post("/coupons", couponHandler.Create)
			admin.Put("/coupons/{code}", couponHandler.Update)
		})

		v.Post("/webhooks/payment", webhookHandler.Handle)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serverErr <- srv.ListenAndServe()
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopCancel()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-stop.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)

		drain := envDurationMillis("SHUTDOWN_DRAIN_MS", 2000)
		time.Sleep(drain)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

// instrument counts which strategy won the region resolution.
func instrument(name string, s region.Strategy) region.Strategy {
	return func(ctx context.Context, sig region.Signals) (region.Context, bool) {
		rc, ok := s(ctx, sig)
		if ok && obs.RegionResolvedTotal != nil {
			obs.RegionResolvedTotal.WithLabelValues(name, rc.Currency).Inc()
		}
		return rc, ok
	}
}

func requireAdminToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin interface not configured", nil)
				return
			}
			presented := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
