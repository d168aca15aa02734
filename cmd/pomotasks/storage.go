package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	config "github.com/davicafu/pomotasks/internal/config"
	sharedDomain "github.com/davicafu/pomotasks/internal/shared/domain"
	sharedMongo "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/mongodb"
	sharedPostgres "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/postgres"
	sharedSQLite "github.com/davicafu/pomotasks/internal/shared/infra/platform/db/sqlite"
	taskDomain "github.com/davicafu/pomotasks/internal/task/domain"
	taskMongo "github.com/davicafu/pomotasks/internal/task/infra/outbound/db/mongodb"
	taskPostgres "github.com/davicafu/pomotasks/internal/task/infra/outbound/db/postgre"
	taskSQLite "github.com/davicafu/pomotasks/internal/task/infra/outbound/db/sqlite"
	userDomain "github.com/davicafu/pomotasks/internal/user/domain"
	userPostgres "github.com/davicafu/pomotasks/internal/user/infra/outbound/db/postgre"
	userSQLite "github.com/davicafu/pomotasks/internal/user/infra/outbound/db/sqlite"
)

// storage agrupa los repositorios elegidos por DB_DRIVER y las tablas outbox que hay que drenar.
type storage struct {
	tasks   taskDomain.TaskRepository
	users   userDomain.UserRepository
	outbox  []sharedDomain.OutboxRepository
	closers []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	case config.DriverMongoDB:
		return openMongo(ctx, cfg, log)
	default:
		return openSQLite(ctx, cfg)
	}
}

func openSQLite(ctx context.Context, cfg *config.Config) (*storage, error) {
	db, err := sharedSQLite.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	if err := taskSQLite.InitSQLiteTaskSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := userSQLite.InitSQLiteUserSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		tasks:   taskSQLite.NewTaskRepoSQLite(db),
		users:   userSQLite.NewUserRepoSQLite(db),
		outbox:  []sharedDomain.OutboxRepository{sharedSQLite.NewOutboxRepoSQLite(db)},
		closers: []func(){func() { db.Close() }},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	if err := taskPostgres.InitPostgresTaskSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := userPostgres.InitPostgresUserSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &storage{
		tasks:   taskPostgres.NewTaskRepoPostgres(db),
		users:   userPostgres.NewUserRepoPostgres(db),
		outbox:  []sharedDomain.OutboxRepository{sharedPostgres.NewOutboxRepoPostgres(db)},
		closers: []func(){func() { db.Close() }},
	}, nil
}

// openMongo guarda las tareas en MongoDB; los usuarios siguen en SQLite.
func openMongo(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	st, err := openSQLite(ctx, cfg)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	st.closers = append(st.closers, func() {
		ctxClose, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctxClose); err != nil {
			log.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	})

	tasks, err := taskMongo.NewTaskRepoMongoDB(connectCtx, client, cfg.MongoDB)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := tasks.EnsureIndexes(connectCtx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create task indexes: %w", err)
	}

	outbox := sharedMongo.NewOutboxRepoMongoDB(client, cfg.MongoDB)
	if err := outbox.EnsureOutboxIndexes(connectCtx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create outbox indexes: %w", err)
	}

	st.tasks = tasks
	st.outbox = append(st.outbox, outbox)
	return st, nil
}
