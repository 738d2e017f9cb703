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

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/billing"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/users"
)

func main() {
	os.Exit(start())
}

// start runs the service and returns the process exit code, so deferred
// cleanup such as logger.Sync runs before os.Exit.
func start() int {
	// Prices and totals go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("pos service stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	m := metrics.New()

	// --- storage ---
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// --- payment gateway ---
	var (
		gateway payment.Gateway
		local   *payment.LocalGateway
	)
	switch cfg.PaymentProvider {
	case config.ProviderStripe:
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey)
	default:
		local = payment.NewLocalGateway(cfg.LocalCheckoutURL)
		gateway = local
		logger.Warn("using local payment gateway; checkouts are completed via POST /checkout/{id}/pay")
	}

	// --- AMQP ---
	var publisher interface {
		billing.EventPublisher
		payment.EventPublisher
	} = events.NopPublisher{}

	var conn *amqp.Connection
	if cfg.RabbitURL != "" {
		conn, err = events.DialRabbit(cfg.RabbitURL)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, st.sequence, events.PublisherOptions{Producer: cfg.ServiceName})
		if err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		defer pub.Close()
		publisher = pub
	} else {
		logger.Info("RABBITMQ_URL not set; events are not published")
	}

	// --- services ---
	inv := inventory.NewService(st.catalog)
	engine := billing.NewEngine(st.catalog, st.guard,
		billing.WithRecorder(st.recorder),
		billing.WithPublisher(publisher),
		billing.WithMetrics(m))
	manager := payment.NewManager(st.catalog, gateway, st.sessions, st.guard, cfg.Currency,
		payment.URLs{Success: cfg.CheckoutSuccessURL, Cancel: cfg.CheckoutCancelURL},
		payment.WithPublisher(publisher),
		payment.WithMetrics(m))
	usr := users.NewService(st.users)

	if conn != nil {
		stopConsumer, err := events.StartCheckoutCompletedConsumer(ctx, conn, manager, st.checkpoints, logger)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer func() { _ = stopConsumer() }()
	}

	// --- HTTP ---
	r := httpapi.NewRouter(httpapi.Deps{
		Logger:           logger,
		Metrics:          m,
		Inventory:        inv,
		Billing:          engine,
		Payments:         manager,
		Users:            usr,
		LocalGateway:     local,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
