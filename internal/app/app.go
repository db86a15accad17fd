package app

import (
	"context"
	"fmt"

	"github.com/inferbench/bench-server/internal/benchmark"
	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/db"
	"github.com/inferbench/bench-server/internal/db/drivers"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/db/repository"
	"github.com/inferbench/bench-server/internal/mq"
	"github.com/inferbench/bench-server/internal/scheduler"
	"github.com/inferbench/bench-server/internal/services/dataset"
	"github.com/inferbench/bench-server/internal/services/uploader"
	"github.com/inferbench/bench-server/internal/store"
	"github.com/inferbench/bench-server/internal/telemetry"
	"github.com/inferbench/bench-server/internal/types"
	"github.com/inferbench/bench-server/pkg/logger"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	mq         mq.MQ
	db         *bun.DB
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc
	store      store.Store
	executor   *benchmark.Executor
	queue      *scheduler.Queue
	uploader   *uploader.Uploader

	Logger *zap.Logger

	ResultRepository repository.IResultRepository
	APIKeyRepository repository.IAPIKeyRepository
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithDB(driver drivers.Driver) OptionFunc {
	return func(app *App) error {
		app.db = driver.GetDB()
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		mq, err := mq.NewMQ(app.config, app.Logger)
		if err != nil {
			return err
		}
		app.mq = mq
		return nil
	}
}

func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		dbConn, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.db = dbConn.GetDB()

		// Ensure tables exist
		err = app.db.RunInTx(app.ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			tables := []interface{}{
				(*models.APIKey)(nil),
				(*models.Result)(nil),
			}

			for _, table := range tables {
				if _, err := tx.NewCreateTable().
					Model(table).
					IfNotExists().
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		app.ResultRepository = repository.NewResultRepository(app.db)
		app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)

		return nil
	}
}

func WithStore() OptionFunc {
	return func(app *App) error {
		st, err := store.NewStore(app.config, app.Logger)
		if err != nil {
			return err
		}
		app.store = st
		return nil
	}
}

func WithExecutor() OptionFunc {
	return func(app *App) error {
		app.executor = benchmark.NewExecutor(app.config, app.Logger)
		return nil
	}
}

// WithUploader attaches the persistence pipeline. It pushes to a dataset
// repo only when one is configured with a token.
func WithUploader() OptionFunc {
	return func(app *App) error {
		if app.store == nil {
			return fmt.Errorf("store is not initialized")
		}
		if app.ResultRepository == nil {
			return fmt.Errorf("result repository is not initialized")
		}

		var pusher uploader.RecordPusher
		if ds := app.config.Dataset; ds != nil && ds.Repo != "" && ds.Token != "" {
			pusher = dataset.NewClient(ds, app.Logger)
		}

		var env *types.EnvironmentInfo
		if app.executor != nil {
			probed := app.executor.Environment()
			env = &probed
		}

		app.uploader = uploader.New(app.ctx, app.store, app.ResultRepository, pusher, env, app.Logger, 10)
		return nil
	}
}

// WithQueue starts the benchmark queue and wires every registered consumer
// to its event stream.
func WithQueue() OptionFunc {
	return func(app *App) error {
		if app.executor == nil {
			return fmt.Errorf("executor is not initialized")
		}

		queue := scheduler.NewQueue(app.executor, app.Logger)
		queue.Subscribe(telemetry.NewObserver(queue).HandleEvent)
		if app.uploader != nil {
			queue.Subscribe(app.uploader.HandleEvent)
		}
		if app.mq != nil {
			queue.Subscribe(mq.NewRelay(app.ctx, app.mq, app.Logger).HandleEvent)
		}

		app.queue = queue
		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.InitLogger(config)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, err
		}
	}

	return app, nil
}

// Close tears the app down back to front: stop accepting and running jobs,
// drain pending persists, then release transports.
func (app *App) Close() {
	if app.queue != nil {
		app.queue.Close()
	}
	if app.uploader != nil {
		app.uploader.Stop()
	}

	app.cancelFunc()

	if app.mq != nil {
		app.mq.Close()
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Store() store.Store {
	return app.store
}

func (app *App) Queue() *scheduler.Queue {
	return app.queue
}

func (app *App) Executor() *benchmark.Executor {
	return app.executor
}

func (app *App) Uploader() *uploader.Uploader {
	return app.uploader
}
