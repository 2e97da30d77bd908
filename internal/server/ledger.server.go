package server

import (
	"net/http"
	"time"

	"ledger-service/internal/config"
	hrest "ledger-service/internal/handler/rest"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/usecase"
	"ledger-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Resources holds the long-lived handles main closes on shutdown.
type Resources struct {
	Close func()
}

func NewLedgerServer(cfg config.AppConfig, logger *zap.Logger) (*http.Server, *Resources, error) {
	// --- DB connection ---
	dbpool, err := config.ConnectDB(logger)
	if err != nil {
		return nil, nil, err
	}
	// don't defer dbpool.Close() here, main closes it during shutdown

	ids := utils.NewIDGenerator()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Kafka publisher ---
	publisher := pub.NewTransactionEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)

	// --- Store & usecases ---
	store := repository.NewStore(dbpool, ids)

	accountUC := usecase.NewAccountUsecase(store, ids, rdb, logger)
	transferUC := usecase.NewTransferUsecase(store, rdb, publisher, logger)
	cardUC := usecase.NewCardUsecase(store, ids, rdb, publisher, logger)
	statementUC := usecase.NewStatementUsecase(store, rdb, logger)
	beneficiaryUC := usecase.NewBeneficiaryUsecase(store, ids, logger)

	// --- REST handler ---
	ledgerHandler := hrest.NewLedgerRestHandler(accountUC, transferUC, cardUC, statementUC, beneficiaryUC, logger)

	// --- HTTP routes ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ledgerHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	res := &Resources{
		Close: func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close kafka publisher", zap.Error(err))
			}
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", zap.Error(err))
			}
			dbpool.Close()
		},
	}

	return srv, res, nil
}
