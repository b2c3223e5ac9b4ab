package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jackc/pgx/v5/pgxpool"

	embedded "github.com/ninalabs/ninabot/db"
	"github.com/ninalabs/ninabot/internal/ai"
	"github.com/ninalabs/ninabot/internal/auth"
	"github.com/ninalabs/ninabot/internal/blocklist"
	"github.com/ninalabs/ninabot/internal/catalog"
	"github.com/ninalabs/ninabot/internal/config"
	"github.com/ninalabs/ninabot/internal/crm"
	"github.com/ninalabs/ninabot/internal/db"
	"github.com/ninalabs/ninabot/internal/debounce"
	"github.com/ninalabs/ninabot/internal/dispatch"
	"github.com/ninalabs/ninabot/internal/event"
	"github.com/ninalabs/ninabot/internal/followup"
	"github.com/ninalabs/ninabot/internal/handlers"
	"github.com/ninalabs/ninabot/internal/lead"
	"github.com/ninalabs/ninabot/internal/logger"
	"github.com/ninalabs/ninabot/internal/messaging"
	"github.com/ninalabs/ninabot/internal/notify"
	"github.com/ninalabs/ninabot/internal/pipeline"
	"github.com/ninalabs/ninabot/internal/server"
	"github.com/ninalabs/ninabot/internal/session"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrate(os.Args[2:])
			return
		case "token":
			runToken(os.Args[2:])
			return
		}
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,

			event.NewHub,
			catalog.Load,
			provideDebounce,

			fx.Annotate(session.NewPgStore, fx.As(new(session.Store))),
			session.NewService,

			fx.Annotate(blocklist.NewPgStore, fx.As(new(blocklist.Store))),
			provideTwilioSender,
			provideOrchestrator,

			fx.Annotate(lead.NewPgStore, fx.As(new(lead.Store))),
			provideLeadService,

			provideCRMClient,
			provideCRMRouter,
			provideCRMSync,
			provideNotifier,

			provideDispatcher,
			providePipeline,
			provideFollowup,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideWidgetHandler),
			provideServerHandler(provideOperatorHandler),

			provideServer,
		),
		fx.Invoke(
			startWorkers,
			startFollowup,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideDebounce(cfg config.Config) *debounce.Coalescer {
	return debounce.New(cfg.Debounce.Window())
}

func provideTwilioSender(cfg config.Config, bl blocklist.Store, log *slog.Logger) messaging.Sender {
	return messaging.NewTwilioSender(cfg.Twilio, bl, log)
}

func provideOrchestrator(cfg config.Config, log *slog.Logger) ai.Orchestrator {
	return ai.New(cfg.OpenAI, log)
}

func provideLeadService(store lead.Store, hub *event.Hub, log *slog.Logger) *lead.Service {
	return lead.NewService(store, hub, log)
}

func provideCRMClient(cfg config.Config, log *slog.Logger) *crm.Client {
	return crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Timeout(), log)
}

func provideCRMRouter(client *crm.Client, cfg config.Config, log *slog.Logger) *crm.Router {
	return crm.NewRouter(client, cfg.CRM, log)
}

func provideCRMSync(router *crm.Router, hub *event.Hub, leads *lead.Service, log *slog.Logger) *crm.Sync {
	return crm.NewSync(router, hub, leads, log)
}

func provideNotifier(cfg config.Config, hub *event.Hub, log *slog.Logger) *notify.Notifier {
	return notify.New(notify.NewMailgunMailer(cfg.Mailgun.APIKey), cfg.Mailgun, hub, log)
}

func provideDispatcher(cat *catalog.Catalog, sender messaging.Sender, leads *lead.Service, cfg config.Config, log *slog.Logger) *dispatch.Dispatcher {
	return dispatch.New(cat, sender, leads, cfg.Twilio.SalesNumber, log)
}

func providePipeline(coalescer *debounce.Coalescer, sessions *session.Service, orch ai.Orchestrator, dispatcher *dispatch.Dispatcher, leads *lead.Service, sender messaging.Sender, log *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(coalescer, sessions, orch, dispatcher, leads, sender, log)
}

func provideFollowup(cfg config.Config, sessions *session.Service, sender messaging.Sender, log *slog.Logger) *followup.Job {
	return followup.New(cfg.Followup, sessions, sender, log)
}

func provideWebhookHandler(log *slog.Logger, p *pipeline.Pipeline, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, p, cfg.Twilio.AuthToken)
}

func provideWidgetHandler(log *slog.Logger, p *pipeline.Pipeline) *handlers.WidgetHandler {
	return handlers.NewWidgetHandler(log, p)
}

func provideOperatorHandler(log *slog.Logger, sessions *session.Service, leads *lead.Service, router *crm.Router, bl blocklist.Store) *handlers.OperatorHandler {
	return handlers.NewOperatorHandler(log, sessions, leads, router, bl)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startWorkers(lc fx.Lifecycle, sync *crm.Sync, notifier *notify.Notifier) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sync.Start()
			notifier.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sync.Stop()
			notifier.Stop()
			return nil
		},
	})
}

func startFollowup(lc fx.Lifecycle, job *followup.Job) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return job.Start()
		},
		OnStop: func(ctx context.Context) error {
			job.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func runMigrate(args []string) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	migrations, err := fs.Sub(embedded.MigrationsFS, "migrations")
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrations fs: %v\n", err)
		os.Exit(1)
	}
	if err := db.RunMigrate(logger.L, cfg.Postgres, migrations, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func runToken(args []string) {
	flags := flag.NewFlagSet("token", flag.ExitOnError)
	subject := flags.String("subject", "operator", "token subject")
	expires := flags.Duration("expires", 24*time.Hour, "token lifetime")
	_ = flags.Parse(args)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(cfg.Auth.JWTSecret, *subject, *expires)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
