package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/mail"
	"github.com/goliatone/go-accounts/middleware/csrf"
	"github.com/goliatone/go-accounts/persistence"
	"github.com/goliatone/go-accounts/ratelimit"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the HTTP server with the account pages mounted under /users.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *configFile)
		},
	}
}

func runServe(cmd *cobra.Command, configFile string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := loadDeps(ctx, configFile)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.cfg.Database.Migrate {
		if err := persistence.Migrate(d.db); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
	}

	srv, err := newServer(ctx, d, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("listening on %s", d.cfg.Server.Address)
		errCh <- srv.app.Listen(d.cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return oops.Code("SERVER_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	d.logger.Info("shutting down")
	if err := srv.app.ShutdownWithTimeout(d.cfg.Server.ShutdownTimeout); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}

	return nil
}

// server is the wired fiber application and the background mail
// dispatcher feeding it.
type server struct {
	app        *fiber.App
	dispatcher *mail.Dispatcher
	redis      redis.UniversalClient
}

func (s *server) Close() error {
	err := s.dispatcher.Close()
	if s.redis != nil {
		if rerr := s.redis.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

func newServer(ctx context.Context, d *deps, reg *prometheus.Registry) (*server, error) {
	cfg := d.cfg
	logger := d.logger

	sender, err := mail.NewSender(cfg.Mail, logger.Named("mail"))
	if err != nil {
		return nil, err
	}

	dispatcher := mail.NewDispatcher(sender,
		mail.WithWorkers(cfg.Dispatcher.Workers),
		mail.WithQueueSize(cfg.Dispatcher.QueueSize),
		mail.WithRetry(cfg.Dispatcher.MaxRetries, cfg.Dispatcher.RetryBase),
		mail.WithCircuitBreaker(cfg.Dispatcher.MaxFailures, cfg.Dispatcher.OpenTimeout),
		mail.WithDispatcherLogger(logger.Named("mail")),
	)
	dispatcher.Start(ctx)

	srv := &server{dispatcher: dispatcher}

	var throttle accounts.Throttle = ratelimit.NewMemory(cfg.Throttle.Interval)
	if cfg.Throttle.RedisAddr != "" {
		srv.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Throttle.RedisAddr,
			Password: cfg.Throttle.RedisPassword,
			DB:       cfg.Throttle.RedisDB,
		})
		throttle = ratelimit.NewRedis(srv.redis, cfg.Throttle.Interval).WithPrefix(cfg.Throttle.RedisPrefix)
	}

	reg.MustRegister(collectors.NewGoCollector())
	activityLogger := logger.Named("activity")
	activity := accounts.MultiActivitySink{
		activitymap.NewMetricsSink(reg),
		activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
			activityLogger.Info("%s %s/%s by %s (%v)", record.Verb, record.ObjectType, record.ObjectID, record.ActorID, record.Metadata)
			return nil
		}),
	}

	repo := accounts.NewRepositoryManager(d.db)
	if err := repo.Validate(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	tokens := accounts.NewStateTokenGeneratorFromConfig(cfg)
	notifier := accounts.NewMailNotifier(dispatcher, cfg).
		WithLogger(logger.Named("notifier")).
		WithLinkTokens(tokens)

	provider := accounts.NewUserProvider(repo.Users()).
		WithLogger(logger.Named("provider")).
		WithLockoutPolicy(cfg.Lockout.Policy())
	auther := accounts.NewAuthenticator(provider, cfg).
		WithLogger(logger.Named("auth")).
		WithActivitySink(activity)
	routeAuth := accounts.NewHTTPAuthenticator(auther, cfg).WithLogger(logger.Named("http"))

	app := fiber.New(fiber.Config{
		AppName:               "accounts",
		Views:                 accounts.NewViewsEngine(),
		DisableStartupMessage: true,
		ErrorHandler:          routeAuth.ErrorHandler,
	})

	if cfg.Server.MetricsPath != "" {
		app.Get(cfg.Server.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	if cfg.Server.CSRF {
		app.Use(csrf.New(csrf.Config{CookieSecure: cfg.CookieSecure}))
		csrf.RegisterRoutes(app)
	}

	app.Use(routeAuth.LoadSession())

	users := app.Group(accounts.DefaultMountPath)
	accounts.RegisterRoutes(users,
		accounts.WithControllerRepository(repo),
		accounts.WithControllerAuthenticator(routeAuth),
		accounts.WithControllerConfig(cfg),
		accounts.WithControllerLinkTokens(tokens),
		accounts.WithControllerNotifier(notifier),
		accounts.WithControllerThrottle(throttle),
		accounts.WithControllerActivitySink(activity),
		accounts.WithControllerLogger(logger.Named("accounts")),
		accounts.WithControllerDebug(cfg.Server.Debug),
	)

	app.Get("/", func(c *fiber.Ctx) error {
		if _, ok := accounts.CurrentUser(c); ok {
			return c.Redirect(accounts.DefaultMountPath + "/verification")
		}
		return c.Redirect(accounts.DefaultLoginPath)
	})

	srv.app = app
	return srv, nil
}
