package repository

import (
	"database/sql"
	"fmt"

	"example/merch-display/internal/config"
	"example/merch-display/internal/logger"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings_snapshot (
	organization_id VARCHAR(64) NOT NULL PRIMARY KEY,
	body TEXT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS product_snapshot (
	position INT NOT NULL PRIMARY KEY,
	product_id VARCHAR(64) NOT NULL,
	body TEXT NOT NULL
);`

// Open connects to the snapshot cache described by cfg and creates its tables
func Open(cfg config.Config) (*sql.DB, error) {
	logger.Log.Debugw("Initializing database connection", "driver", cfg.DBDriver)

	var (
		dsn  string
		desc string
	)
	switch cfg.DBDriver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPass
		mc.Net = "tcp"
		mc.Addr = cfg.DBAddr
		mc.DBName = cfg.DBName
		mc.MultiStatements = true
		dsn = mc.FormatDSN()
		desc = cfg.DBAddr + "/" + cfg.DBName
	case "sqlite3":
		dsn = cfg.DBDSN
		desc = cfg.DBDSN
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", cfg.DBDriver)
	}

	db, err := sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		logger.Log.Errorw("Failed to open database", "error", err)
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	if cfg.DBDriver == "sqlite3" {
		// one connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		logger.Log.Errorw("Failed to ping database", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Infow("Database connection established", "driver", cfg.DBDriver, "database", desc)
	return db, nil
}

// Migrate creates the snapshot tables when missing
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		logger.Log.Errorw("Failed to create schema", "error", err)
		return fmt.Errorf("migrate: %v", err)
	}
	return nil
}

// Close closes the database connection
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	logger.Log.Debug("Closing database connection")
	err := db.Close()
	if err != nil {
		logger.Log.Errorw("Error closing database", "error", err)
	} else {
		logger.Log.Info("Database connection closed")
	}
	return err
}
