// Command diagnose checks the portal's environment: which credentials are
// present, whether the record store answers, and which agency table (if
// any) knows a given email.  Secrets are never printed in full.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/partner-portal/internal/app"
	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

func main() {
	email := flag.String("email", "", "agency email to look up (case-insensitive)")
	tables := flag.String("tables", "", "comma-separated agency tables to probe (default: TABLE_AGENCIES)")
	timeout := flag.Duration("timeout", 20*time.Second, "overall timeout")
	flag.Parse()

	config.LoadDotEnv()
	os.Exit(run(os.Stdout, *email, *tables, *timeout))
}

func run(w io.Writer, email, tables string, timeout time.Duration) int {
	fmt.Fprintln(w, "== environment")
	for _, key := range []string{"JWT_SECRET", "AIRTABLE_API_KEY"} {
		fmt.Fprintf(w, "%-28s %s\n", key, secretStatus(os.Getenv(key)))
	}
	for _, key := range []string{"AIRTABLE_BASE_ID", "AIRTABLE_PRODUCT_BASE_ID", "AIRTABLE_AGENCY_BASE_ID", "AIRTABLE_RESERVATION_BASE_ID"} {
		fmt.Fprintf(w, "%-28s %s\n", key, idStatus(os.Getenv(key)))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(w, "\nconfig: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "\n== record store (%s)\n", cfg.Store.Driver)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg, closeStore, err := app.OpenRegistry(ctx, cfg, logger.NewStructured("warn", "console"))
	if err != nil {
		fmt.Fprintf(w, "client: failed (%v)\n", err)
		return 1
	}
	defer closeStore()
	base, err := reg.Base(cfg.Store.AgencyBase)
	if err != nil {
		fmt.Fprintf(w, "client: failed (%v)\n", err)
		return 1
	}
	fmt.Fprintf(w, "client: initialised for base %s\n", recordstore.Redact(cfg.Store.AgencyBase))

	candidates := []string{cfg.Tables.Agencies}
	if tables != "" {
		candidates = strings.Split(tables, ",")
	}
	return probe(ctx, w, base, candidates, strings.TrimSpace(email))
}

// probe reads one record from each candidate table, filtered by email when
// one is given.  It returns 0 when at least one table answered.
func probe(ctx context.Context, w io.Writer, base recordstore.Base, candidates []string, email string) int {
	q := recordstore.Query{MaxRecords: 1}
	if email != "" {
		q.Filter = recordstore.EqFold{Field: "mail", Value: email}
		fmt.Fprintf(w, "\n== looking up %s\n", email)
	}
	answered := false
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		recs, err := base.Table(name).Select(ctx, q)
		if err != nil {
			fmt.Fprintf(w, "%-24s failed: %v\n", name, err)
			continue
		}
		answered = true
		fmt.Fprintf(w, "%-24s %d record(s)\n", name, len(recs))
		if len(recs) > 0 {
			r := recs[0]
			fmt.Fprintf(w, "  id=%s agency=%q commission=%v admin=%t canReserve=%t\n",
				r.ID, r.Fields.FirstString("Agency", "Name"), r.Fields.Float("Comision_base"),
				r.Fields.Bool("Admin"), r.Fields.Bool("Pode Reservar"))
		}
	}
	if !answered {
		return 1
	}
	return 0
}

func secretStatus(v string) string {
	if v == "" {
		return "missing"
	}
	n := 4
	if len(v) < 8 {
		n = 0
	}
	return fmt.Sprintf("loaded (starts with %q, length %d)", v[:n], len(v))
}

func idStatus(v string) string {
	if v == "" {
		return "missing"
	}
	return "loaded (" + recordstore.Redact(v) + ")"
}
