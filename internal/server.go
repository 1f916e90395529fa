package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/traininglog/internal/auth"
	"github.com/2beens/traininglog/internal/config"
	"github.com/2beens/traininglog/internal/db"
	"github.com/2beens/traininglog/internal/middleware"
	"github.com/2beens/traininglog/internal/telemetry/metrics"
	"github.com/2beens/traininglog/internal/telemetry/tracing"
	"github.com/2beens/traininglog/internal/traininglog"
	"github.com/2beens/traininglog/internal/traininglog/memstore"
	"github.com/2beens/traininglog/internal/traininglog/pgstore"
	"github.com/2beens/traininglog/internal/traininglog/sqlitestore"
	"github.com/2beens/traininglog/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const maxRequestBodyBytes = 1 << 20

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	store       traininglog.Store
	service     *traininglog.Service
	redisClient *redis.Client
	checker     auth.Checker
	rateLimiter middleware.RequestRateLimiter

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	PostgresPassword        string
	HoneycombTracingEnabled bool
	// Checker and RateLimiter replace the redis backed defaults when set.
	Checker     auth.Checker
	RateLimiter middleware.RequestRateLimiter
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	store, poolCollector, err := openStore(ctx, cfg, params)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	var extraCollectors []prometheus.Collector
	if poolCollector != nil {
		extraCollectors = append(extraCollectors, poolCollector)
	}
	promRegistry := metrics.SetupPrometheus(metrics.RegistryParams{
		StoreDriver: cfg.StoreDriver,
		Version:     params.VersionInfo,
		Collectors:  extraCollectors,
	})
	metricsManager := metrics.NewManager("traininglog", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "traininglog-backend", rdb)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      cfg,
		store:       store,
		redisClient: rdb,
		checker:     params.Checker,
		rateLimiter: params.RateLimiter,
		versionInfo: params.VersionInfo,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}
	if s.checker == nil {
		s.checker = auth.NewSessionChecker(auth.DefaultTTL, rdb)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = redis_rate.NewLimiter(rdb)
	}

	s.service = traininglog.NewService(traininglog.ServiceParams{
		Store:       store,
		Cache:       traininglog.NewPRCache(cfg.PRCacheSizeMB*1024*1024, cfg.PRCacheTTL.Duration, metricsManager),
		Metrics:     metricsManager,
		MaxAttempts: cfg.TxMaxAttempts,
	})

	return s, nil
}

func openStore(
	ctx context.Context,
	cfg *config.Config,
	params NewServerParams,
) (traininglog.Store, prometheus.Collector, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         cfg.PostgresUser,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}

		store := pgstore.New(dbPool)
		if err := store.Migrate(ctx); err != nil {
			dbPool.Close()
			return nil, nil, err
		}
		return store, db.NewPoolCollector(dbPool, cfg.PostgresDBName), nil
	case config.StoreDriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StoreDriverMemory:
		log.Warnln("using in-memory store, entries are lost on restart")
		return memstore.New(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver [%s]", cfg.StoreDriver)
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET", "OPTIONS").Name("root")
	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	logsHandler := traininglog.NewHandler(s.service)
	logsHandler.SetupRoutes(r, s.rateLimiter, s.metricsManager, s.config.WriteRateLimitPerMin)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.checker, s.config.AnonymousUserID)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.LimitAndDrainRequest(maxRequestBodyBytes))

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.health")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Store:   s.config.StoreDriver,
		Version: s.versionInfo,
	}
	if _, err := s.store.List(ctx, traininglog.ListParams{Limit: 1}); err != nil {
		log.Errorf("health check, store: %s", err)
		resp.Status = "store unavailable"
		pkg.WriteJSON(w, resp, http.StatusServiceUnavailable)
		return
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{Registry: s.promRegistry},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the store goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.store != nil {
		log.Debugln("closing store ...")
		if err := s.store.Close(); err != nil {
			log.Errorf("failed to close store: %s", err)
		}
		log.Debugln("store closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}
