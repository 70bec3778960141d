// Package app wires configuration into the record store backends shared by
// the server and the diagnose command.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/database"
	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/recordstore"
	"github.com/iliyamo/partner-portal/internal/recordstore/airtable"
	"github.com/iliyamo/partner-portal/internal/recordstore/memstore"
	"github.com/iliyamo/partner-portal/internal/recordstore/mysqlstore"
)

// OpenRegistry builds the base registry for the configured driver.  The
// returned closer releases the backend (the MySQL pool); it is never nil.
func OpenRegistry(ctx context.Context, cfg config.Config, log logger.Logger) (*recordstore.Registry, func(), error) {
	noop := func() {}
	s := cfg.Store
	switch s.Driver {
	case "airtable":
		var opts []airtable.Option
		if s.APIURL != "" {
			opts = append(opts, airtable.WithBaseURL(s.APIURL))
		}
		return recordstore.NewRegistry(airtable.Factory(s.APIKey, opts...)), noop, nil

	case "mysql":
		db, err := database.Open(s.DBUser, s.DBPass, s.DBHost, s.DBPort, s.DBName)
		if err != nil {
			return nil, noop, err
		}
		closer := func() { _ = db.Close() }
		if err := bootstrap(ctx, db, cfg); err != nil {
			closer()
			return nil, noop, err
		}
		log.Info("record store: mysql", map[string]interface{}{"host": s.DBHost, "db": s.DBName})
		return recordstore.NewRegistry(mysqlstore.Factory(db)), closer, nil

	case "memory":
		ms := memstore.New()
		if s.FixturePath != "" {
			if err := ms.LoadFile(s.FixturePath); err != nil {
				return nil, noop, err
			}
		}
		log.Warn("record store: in-memory, data is lost on exit", map[string]interface{}{"fixture": s.FixturePath})
		return recordstore.NewRegistry(ms.Factory()), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown record store driver %q", s.Driver)
}

// bootstrap registers the primary table names in each base.  Legacy names
// stay unregistered so they behave as missing tables.
func bootstrap(ctx context.Context, db *sql.DB, cfg config.Config) error {
	t := cfg.Tables
	byBase := map[string][]string{}
	add := func(base string, names ...string) {
		for _, n := range names {
			if n != "" {
				byBase[base] = append(byBase[base], n)
			}
		}
	}
	if len(t.Products) > 0 {
		add(cfg.Store.ProductBase, t.Products[0])
	}
	add(cfg.Store.ProductBase, t.Mural, t.ReadLog)
	add(cfg.Store.AgencyBase, t.Agencies)
	add(cfg.Store.ReservBase, t.Reservations)
	for base, names := range byBase {
		if err := database.Bootstrap(ctx, db, base, names...); err != nil {
			return err
		}
	}
	return nil
}
