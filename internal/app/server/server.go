package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/menoease/internal/app/evaluator"
	"github.com/magabrotheeeer/menoease/internal/billing"
	"github.com/magabrotheeeer/menoease/internal/cache"
	"github.com/magabrotheeeer/menoease/internal/config"
	"github.com/magabrotheeeer/menoease/internal/http/handlers/health"
	"github.com/magabrotheeeer/menoease/internal/http/handlers/jobs/runjob"
	"github.com/magabrotheeeer/menoease/internal/http/handlers/webhook/stripewebhook"
	"github.com/magabrotheeeer/menoease/internal/http/middlewarectx"
	"github.com/magabrotheeeer/menoease/internal/lib/jwt"
	"github.com/magabrotheeeer/menoease/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/migrations"
	"github.com/magabrotheeeer/menoease/internal/notify/emailjs"
	"github.com/magabrotheeeer/menoease/internal/notify/queue"
	"github.com/magabrotheeeer/menoease/internal/services/reconciler"
	"github.com/magabrotheeeer/menoease/internal/storage/repository"
)

const (
	tierCatalogTTL  = 10 * time.Minute
	webhookRate     = 20
	webhookBurst    = 40
	shutdownTimeout = 15 * time.Second
	failedReminders = "Failed to process reminders"
	failedReports   = "Failed to generate reports"
)

// App HTTP приложение.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилище, кэш и провайдеров и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		closeResources(db, nil, nil, nil, logger)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(db, nil, nil, nil, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	webhookHandler, err := app.webhookHandler(cfg)
	if err != nil {
		closeResources(db, cacheRedis, app.ch, app.conn, logger)
		return nil, err
	}

	var remindersRunner, reportsRunner runjob.Runner
	svcs, err := evaluator.New(cfg, logger, db, cacheRedis)
	if err != nil {
		logger.Error("evaluator is not configured, job endpoints will fail", sl.Err(err))
	} else {
		remindersRunner, reportsRunner = svcs.Reminders, svcs.Reports
	}

	var jobAuth func(http.Handler) http.Handler
	if cfg.JWTSecretKey != "" {
		jobAuth = middlewarectx.JobAuth(jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), logger)
	} else {
		logger.Warn("jobs jwt secret is not set, job endpoints are disabled")
		remindersRunner, reportsRunner = nil, nil
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Handlers{
		Webhook:   webhookHandler,
		Reminders: runjob.New(logger, "reminders", remindersRunner, failedReminders),
		Reports:   runjob.New(logger, "reports", reportsRunner, failedReports),
		Health: health.New(logger, map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		}),
	}, jobAuth, rate.NewLimiter(webhookRate, webhookBurst))

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// webhookHandler собирает сверку подписок. Без ключей Stripe вебхук отвечает 500.
func (a *App) webhookHandler(cfg *config.Config) (*stripewebhook.Handler, error) {
	if err := cfg.ValidateStripe(); err != nil {
		a.logger.Error("stripe is not configured, webhook will fail", sl.Err(err))
		return stripewebhook.New(a.logger, nil, nil), nil
	}

	var email reconciler.EmailSender
	switch cfg.EmailDelivery {
	case config.EmailDeliveryQueue:
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		a.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		a.ch = ch
		email = queue.NewEmailPublisher(ch)
	default:
		if err := cfg.ValidateEmailJS(); err != nil {
			a.logger.Warn("emailjs is not configured, subscription emails are disabled", sl.Err(err))
		} else {
			email = emailjs.NewClient(cfg.EmailJS)
		}
	}

	stripeClient := billing.New(cfg.Stripe.SecretKey, cfg.WebhookSecret)
	tiers := cache.NewTierCatalog(a.logger, a.cache, a.db, tierCatalogTTL)
	svc := reconciler.NewService(a.logger.With(slog.String("component", "reconciler")), a.db, tiers, stripeClient, email, reconciler.Templates{
		Welcome:   cfg.TemplateWelcome,
		Upgrade:   cfg.TemplateUpgrade,
		Downgrade: cfg.TemplateDowngrade,
		Cancelled: cfg.TemplateCancelled,
	})
	return stripewebhook.New(a.logger, stripeClient, svc), nil
}

func closeResources(db *repository.Storage, c *cache.Cache, ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if c != nil {
		if err := c.Close(); err != nil {
			logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		closeResources(a.db, a.cache, a.ch, a.conn, a.logger)
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeResources(a.db, a.cache, a.ch, a.conn, a.logger)
		return err
	}
}
