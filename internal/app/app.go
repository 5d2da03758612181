package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/lucemdev/fundtrace/internal/aggregate"
	"github.com/lucemdev/fundtrace/internal/cascade"
	"github.com/lucemdev/fundtrace/internal/delivery"
	"github.com/lucemdev/fundtrace/internal/events"
	"github.com/lucemdev/fundtrace/internal/handlers"
	"github.com/lucemdev/fundtrace/internal/invite"
	"github.com/lucemdev/fundtrace/internal/mutation"
	"github.com/lucemdev/fundtrace/internal/observability"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/server"
	"github.com/lucemdev/fundtrace/internal/store"
	"github.com/lucemdev/fundtrace/internal/types"
)

type App struct {
	Log        *logger.Logger
	Cfg        Config
	Store      store.Client
	Router     *gin.Engine
	Dispatcher *events.Dispatcher
	Registry   *events.Registry

	relay        events.Relay
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	// The document store engine is an external collaborator; the in-memory
	// client stands in for it here and in tests.
	client := store.NewMemory()

	email := delivery.NewEmailSender(log, delivery.EmailConfigFromEnv())
	push := delivery.NewLogPushSender(log)
	gateway := delivery.NewGateway(client, email, push, log)

	executor := mutation.NewExecutor(client, log, cfg.BatchSize)
	planner := cascade.NewPlanner(client, executor, log)
	aggregator := aggregate.NewAggregator(client, log)
	machine := invite.NewMachine(client, gateway, log)
	provisioner := invite.NewProvisioner(client, log)

	registry, err := wireRegistry(planner, aggregator, machine)
	if err != nil {
		log.Sync()
		return nil, err
	}
	dispatcher := events.NewDispatcher(log, registry, cfg.DispatcherConcurrency)

	var relay events.Relay
	if cfg.Redis.Enabled {
		relay, err = events.NewRedisRelay(log, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis relay: %w", err)
		}
	}

	router := server.NewRouter(server.RouterConfig{
		ServiceName:   cfg.ServiceName,
		EchoHandler:   handlers.NewEchoHandler(log),
		SignupHandler: handlers.NewSignupHandler(provisioner, log),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        client,
		Router:       router,
		Dispatcher:   dispatcher,
		Registry:     registry,
		relay:        relay,
		otelShutdown: otelShutdown,
	}, nil
}

// Start begins consuming the store's change feed. With the Redis relay
// enabled, local changes are published to Redis and the dispatcher consumes
// the relayed stream, so several processes can share one event flow.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	feed := a.Store.Watch(ctx)
	if a.relay == nil {
		go a.Dispatcher.Run(ctx, feed)
		return nil
	}

	relayed := make(chan store.Change, 256)
	if err := a.relay.StartForwarder(ctx, func(change store.Change) {
		select {
		case <-ctx.Done():
		case relayed <- change:
		}
	}); err != nil {
		return fmt.Errorf("start relay forwarder: %w", err)
	}
	go func() {
		for change := range feed {
			if err := a.relay.Publish(ctx, change); err != nil {
				a.Log.Error("relay publish failed", "collection", change.Collection, "doc_id", change.ID, "error", err)
			}
		}
	}()
	go a.Dispatcher.Run(ctx, relayed)
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.relay != nil {
		_ = a.relay.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func wireRegistry(planner *cascade.Planner, aggregator *aggregate.Aggregator, machine *invite.Machine) (*events.Registry, error) {
	registry := events.NewRegistry()
	regs := []struct {
		collection string
		kind       store.ChangeKind
		handler    events.HandlerFunc
	}{
		{types.ColAccounts, store.ChangeUpdate, planner.HandleAccountUpdated},
		{types.ColAccounts, store.ChangeDelete, planner.HandleAccountDeleted},
		{types.ColTransactions, store.ChangeCreate, aggregator.HandleTransactionCreated},
		{types.ColTransactions, store.ChangeDelete, aggregator.HandleTransactionDeleted},
		{types.ColNotifications, store.ChangeCreate, machine.HandleNotificationCreated},
		{types.ColNotifications, store.ChangeUpdate, machine.HandleNotificationUpdated},
	}
	for _, r := range regs {
		if err := registry.Register(r.collection, r.kind, r.handler); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
