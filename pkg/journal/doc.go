// Package journal persists a record of every backend resolution.
//
// # Overview
//
// Each resolution, successful or not, produces a Record holding the
// requested, effective and selected backend ids, the outcome and the
// reason. Records flow through an asynchronous Recorder into a Store:
//
//   - SQLiteStore: durable storage, driver "sqlite" (modernc.org/sqlite,
//     pure Go) or "sqlite3" (github.com/mattn/go-sqlite3, cgo)
//   - MemoryStore: in-process storage for tests and ":memory:" paths
//
// # Retention
//
// RetentionScheduler prunes records older than the configured number of
// days on a cron schedule (default "0 3 * * *", daily at 3 AM).
//
// # Usage
//
//	store, err := journal.Open(cfg.Journal.Driver, cfg.Journal.Path)
//	if err != nil {
//	    return err
//	}
//	rec := journal.NewRecorder(store, journal.RecorderConfig{BufferSize: 1000})
//	defer rec.Close(ctx)
//
//	rec.Record(ctx, journal.Record{Requested: "auto", Selected: "gotoml", Outcome: journal.OutcomeSelected})
package journal
