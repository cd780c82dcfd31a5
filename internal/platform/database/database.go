package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Options struct {
	Driver string
	// Path is the sqlite file; its directory is created when missing.
	Path string
	DSN  string
}

// New opens the SQL store behind the vector store and checks it is reachable.
func New(ctx context.Context, opts Options) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch opts.Driver {
	case "sqlite":
		if dir := filepath.Dir(opts.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir failed: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(opts.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite failed: %w", err)
		}
	case "mysql":
		db, err = gorm.Open(mysql.Open(opts.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get %s sql db failed: %w", opts.Driver, err)
	}
	if opts.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping %s failed: %w", opts.Driver, err)
	}
	return db, nil
}
