package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/messaging-permissions/internal"
	permissionDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/permission"
	recruitingDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/recruiting"
	subscriptionDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/subscription"
	userDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/user"
	"github.com/frahmantamala/messaging-permissions/internal/permission"
	"github.com/frahmantamala/messaging-permissions/internal/permission/memory"
	permissionpostgres "github.com/frahmantamala/messaging-permissions/internal/permission/postgres"
)

const memoryDSN = "file::memory:?cache=shared"

// Storage bundles the handles every command needs. With the memory driver the
// collaborator tables live in an in-process sqlite database and permissions
// in a mutex-guarded map.
type Storage struct {
	Driver      string
	Gorm        *gorm.DB
	SQL         *sqlx.DB
	Permissions permission.Repository
}

func openStorage(cfg internal.DatabaseConfig, logger *slog.Logger) (*Storage, error) {
	var (
		dialector gorm.Dialector
		sqlxName  string
	)
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
		sqlxName = "pgx"
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
		sqlxName = "sqlite3"
	case "memory":
		dialector = sqlite.Open(memoryDSN)
		sqlxName = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	} else {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{
		Driver: cfg.Driver,
		Gorm:   db,
		SQL:    sqlx.NewDb(sqlDB, sqlxName),
	}

	if cfg.Driver == "memory" {
		if err := autoMigrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		storage.Permissions = memory.NewStore()
	} else {
		storage.Permissions = permissionpostgres.NewPermissionRepository(db)
	}

	logger.Info("storage ready", "driver", cfg.Driver)
	return storage, nil
}

func (s *Storage) Close() error {
	return s.SQL.Close()
}

// autoMigrate creates the schema from the row models. Postgres deployments
// use the goose migrations instead.
func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&userDatamodel.User{},
		&recruitingDatamodel.Job{},
		&recruitingDatamodel.Application{},
		&subscriptionDatamodel.Subscription{},
		&permissionDatamodel.MessagingPermission{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return nil
}
