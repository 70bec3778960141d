// Package database opens the MySQL pool used by the mysql record store
// driver and bootstraps its two tables.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = user
	mc.Passwd = pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, port)
	mc.DBName = name
	// parseTime -> DATETIME scans into time.Time; UTC keeps record timestamps consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS record_tables (
    base_id VARCHAR(64)  NOT NULL,
    name    VARCHAR(255) NOT NULL,
    PRIMARY KEY (base_id, name)
)`,
	`CREATE TABLE IF NOT EXISTS records (
    id         VARCHAR(32)  NOT NULL PRIMARY KEY,
    base_id    VARCHAR(64)  NOT NULL,
    table_name VARCHAR(255) NOT NULL,
    fields     JSON         NOT NULL,
    created_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    KEY idx_records_table (base_id, table_name)
)`,
}

// Bootstrap creates the record store schema when missing and registers the
// given tables under baseID.  Tables that are not registered behave as
// missing, which is how fallback chains are exercised against MySQL.
func Bootstrap(ctx context.Context, db *sql.DB, baseID string, tables ...string) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	const q = `INSERT IGNORE INTO record_tables (base_id, name) VALUES (?, ?)`
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, q, baseID, t); err != nil {
			return fmt.Errorf("register table %s: %w", t, err)
		}
	}
	return nil
}
