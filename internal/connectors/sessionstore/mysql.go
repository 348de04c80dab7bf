package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
)

// NewMySQLStore connects to the shared MySQL database and ensures the
// sessions table exists.
func NewMySQLStore(cfg config.Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := newStore(db, mysqlDialect, cfg.DBQueryTimeout)
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open returns the store selected by cfg.SessionDriver.
func Open(cfg config.Config) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionDriver)) {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SessionSQLitePath, cfg.DBQueryTimeout)
	case "mysql":
		return NewMySQLStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported session driver %q", cfg.SessionDriver)
	}
}
