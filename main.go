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

	appPayment "github.com/Zhima-Mochi/checkout-payment/internal/application/payment"
	"github.com/Zhima-Mochi/checkout-payment/internal/config"
	domorder "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	obsprovider "github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/postgres"
	stripeproc "github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/stripe"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/supabase"
	"github.com/Zhima-Mochi/checkout-payment/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/checkout-payment/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.MustNewLogger(logging.Options{Service: "checkout-payment", Env: "unknown"})
		bootLogger.Fatal("config_load_failed", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometrics.New(prometheus.DefaultRegisterer, "", "")
	counters, histograms := prometrics.Standard(registry)
	tel, err := obsprovider.New(
		oteltrace.New(cfg.ServiceName),
		zaplogger.New(baseLogger),
		counters,
		histograms,
	)
	if err != nil {
		systemLogger.Fatal("observability_init_failed", zap.Error(err))
	}

	orders, closeStore, err := newOrderStore(ctx, cfg)
	if err != nil {
		systemLogger.Fatal("order_store_init_failed", zap.Error(err))
	}
	defer closeStore()

	processor, err := stripeproc.NewProcessor(cfg.StripeSecretKey, stripeproc.Options{BaseURL: cfg.StripeAPIURL})
	if err != nil {
		systemLogger.Fatal("payment_processor_init_failed", zap.Error(err))
	}

	processPayment := appPayment.NewProcessPaymentUseCase(orders, processor, tel, appPayment.Settings{
		StoreBaseURL: cfg.SupabaseURL,
	})

	handler := httppresentation.NewHandler(processPayment, tel, httppresentation.Options{
		RateLimit: rate.Limit(cfg.RateLimitRPS),
		Burst:     cfg.RateLimitBurst,
		Metrics:   promhttp.Handler(),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.Stringer("config", cfg),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

// newOrderStore picks the order store backend named in cfg.
func newOrderStore(ctx context.Context, cfg *config.Config) (domorder.Repository, func(), error) {
	switch cfg.OrderStore {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewOrderRepository(pool), pool.Close, nil
	case config.StorePostgREST:
		repo, err := supabase.NewOrderRepository(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown order store %q", cfg.OrderStore)
	}
}
