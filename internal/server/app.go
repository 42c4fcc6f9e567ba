// Package server initializes and runs one worker instance of the credential
// service: it connects to the document store, wires the component graph, and
// serves HTTP until shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dzaytsev/credkeeper/internal/logging"
	"github.com/dzaytsev/credkeeper/internal/server/cache"
	"github.com/dzaytsev/credkeeper/internal/server/config"
	"github.com/dzaytsev/credkeeper/internal/server/httpapi"
	"github.com/dzaytsev/credkeeper/internal/server/metrics"
	"github.com/dzaytsev/credkeeper/internal/server/repositories/accounts"
	"github.com/dzaytsev/credkeeper/internal/server/services"
	"github.com/dzaytsev/credkeeper/internal/supervisor"
)

const connectTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	client *mongo.Client
	server *httpapi.Server
}

// NewApp builds the full per-worker component graph. Components are
// constructed once here and passed down explicitly; nothing is package-level
// state.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	s := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(s).With("worker", supervisor.Slot())

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("store connect error: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("store ping error: %w", err)
	}

	coll := client.Database(cfg.DatabaseName).Collection(cfg.CollectionName)
	repo := accounts.NewMongoRepository(coll)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		return nil, err
	}

	accountService := services.NewAccountService(repo, cache.NewAccounts(cfg.CacheTTL), cfg)
	srv := httpapi.NewServer(cfg, logger, accountService, metrics.New())

	return &App{config: cfg, logger: logger, client: client, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves requests until a termination signal arrives, then disconnects
// from the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting worker...")

	app.initSignalHandler(cancelFunc)

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := app.client.Disconnect(disconnectCtx); err != nil {
		app.logger.Error(disconnectCtx, "store disconnect error", "error", err.Error())
	}

	app.logger.Info(ctx, "Worker stopped")
}
