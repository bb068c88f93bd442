package main

import (
	"context"
	"flag"
	"os"
	"wallstreetvotes/internal/config"
	"wallstreetvotes/internal/db"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/subjectkey"

	"github.com/sirupsen/logrus"
)

// Schema migration plus one-off maintenance of the stock tallies.
func main() {
	legacyDirection := flag.String("legacy-direction", "", "rewrite ticker-only stock keys with this direction (long|short)")
	audit := flag.Bool("audit", false, "compare stored stock counters with the vote ledger")
	recount := flag.Bool("recount", false, "with -audit, rewrite drifted counters from the ledger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	cfg.SetupLogger()

	conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}

	ctx := context.Background()

	if *legacyDirection != "" {
		dir, err := subjectkey.ParseDirection(*legacyDirection)
		if err != nil {
			logrus.Fatalf("invalid -legacy-direction: %v", err)
		}
		n, err := services.MigrateLegacyKeys(ctx, conn, dir)
		if err != nil {
			logrus.Fatalf("legacy key migration aborted: %v", err)
		}
		logrus.Infof("rewrote %d legacy stock keys", n)
	}

	if *audit {
		tally := services.NewTallyProjection(conn, services.NewStockLedger(conn), nil, 0)
		drifts, err := tally.Audit(ctx)
		if err != nil {
			logrus.Fatalf("audit failed: %v", err)
		}
		for _, d := range drifts {
			logrus.WithFields(logrus.Fields{
				"subject_key":  d.Key,
				"stored_votes": d.StoredVotes,
				"stored_total": d.StoredTotal,
				"ledger_votes": d.LedgerVotes,
				"ledger_total": d.LedgerTotal,
			}).Warn("Stock counters drifted from ledger")

			if *recount {
				if err := tally.Recount(ctx, subjectkey.Key(d.Key)); err != nil {
					logrus.Fatalf("recount %s: %v", d.Key, err)
				}
			}
		}
		logrus.Infof("audit found %d drifted stocks", len(drifts))
		if len(drifts) > 0 && !*recount {
			os.Exit(1)
		}
	}
}
