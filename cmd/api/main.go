package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"personal-ledger/config"
	"personal-ledger/internal/adapter/events"
	"personal-ledger/internal/adapter/gateway"
	httpHandler "personal-ledger/internal/adapter/http/handler"
	"personal-ledger/internal/adapter/storage/memory"
	pgStorage "personal-ledger/internal/adapter/storage/postgres"
	redisStorage "personal-ledger/internal/adapter/storage/redis"
	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/internal/service"
	"personal-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// stores groups the repositories of the selected storage driver.
type stores struct {
	accounts    ports.AccountRepository
	ledger      ports.LedgerRepository
	cards       ports.CardRepository
	audit       ports.AuditRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: cfg.Log.Service,
		Version: cfg.Log.Version,
		Storage: cfg.Storage.Driver,
	})

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("LEDGER_JWT_SECRET must be set")
	}
	startingBalance, err := domain.ParseMoney(cfg.Ledger.StartingBalance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger.starting_balance")
	}
	maxAmount, err := domain.ParseMoney(cfg.Gateway.MaxAmount)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid gateway.max_amount")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Personal Ledger")

	ctx := context.Background()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer st.close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Gateway: simulated processor behind a circuit breaker
	gw := gateway.NewBreaker(
		gateway.NewSimulated(redisStorage.NewPaymentRecordStore(rdb), gateway.Options{
			MaxAmount:   maxAmount,
			DeclineRate: cfg.Gateway.DeclineRate,
			Latency:     cfg.Gateway.Latency,
			Currency:    cfg.Ledger.Currency,
			RecordTTL:   cfg.Gateway.RecordTTL,
		}, log),
		gateway.BreakerSettings{
			MaxRequests:         cfg.Gateway.Breaker.MaxRequests,
			Interval:            cfg.Gateway.Breaker.Interval,
			Timeout:             cfg.Gateway.Breaker.Timeout,
			ConsecutiveFailures: cfg.Gateway.Breaker.ConsecutiveFailures,
		},
		log,
	)

	ledgerDeps := service.LedgerDeps{
		Accounts:   st.accounts,
		Ledger:     st.ledger,
		Cards:      st.cards,
		IdempRepo:  st.idempotency,
		IdempCache: redisStorage.NewIdempotencyCache(rdb),
		Locker:     redisStorage.NewRechargeLocker(rdb, 2*cfg.Gateway.Latency+30*time.Second, log),
		Gateway:    gw,
		Transactor: st.transactor,
	}
	if cfg.Kafka.Enabled {
		publisher := events.NewPublisher(cfg.Kafka)
		defer publisher.Close()
		ledgerDeps.Events = publisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publisher enabled")
	}

	hashSvc := service.NewArgon2HashService(service.Argon2Params{
		Time:      cfg.Password.Time,
		MemoryKiB: cfg.Password.MemoryKiB,
		Threads:   cfg.Password.Threads,
		KeyLen:    cfg.Password.KeyLen,
		SaltLen:   cfg.Password.SaltLen,
	})
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	authSvc := service.NewAuthService(st.accounts, hashSvc, tokenSvc, startingBalance)
	ledgerSvc := service.NewLedgerService(ledgerDeps, service.LedgerOptions{
		Currency:       cfg.Ledger.Currency,
		IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		BookTimeout:    cfg.Ledger.BookTimeout,
	}, log)
	accountSvc := service.NewAccountService(st.accounts, st.ledger, gw, cfg.Ledger.Currency)
	cardSvc := service.NewCardService(st.cards, st.accounts, st.transactor, log)
	auditSvc := service.NewAuditService(st.audit, log)

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		AccountSvc:     accountSvc,
		CardSvc:        cardSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{st.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		Currency:       cfg.Ledger.Currency,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore(cfg.Ledger.LockTimeout)
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return &stores{
			accounts:    memory.NewAccountRepo(store),
			ledger:      memory.NewLedgerRepo(store),
			cards:       memory.NewCardRepo(store),
			audit:       memory.NewAuditRepo(store),
			idempotency: memory.NewIdempotencyRepo(store),
			transactor:  store,
			health:      store,
			close:       func() {},
		}, nil

	case config.StorageDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(cfg.Database, log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")
		return &stores{
			accounts:    pgStorage.NewAccountRepo(pool),
			ledger:      pgStorage.NewLedgerRepo(pool),
			cards:       pgStorage.NewCardRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			transactor:  pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
