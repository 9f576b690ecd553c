/*
Package eventsourcing keeps the journal of every domain event seen on the bus.

The journal is append-only and sequence-ordered. It is the source the read
model is rebuilt from.
*/
package eventsourcing

import (
	"context"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/db"
	"github.com/shortlink-org/bank-saga/logger"
)

// Group is the consumer group the journal subscribes in.
const Group = "journal"

// New opens the journal in the "journal" LevelDB database.
func New(ctx context.Context, log logger.Logger, cfg *config.Config) (*Journal, error) {
	j := &Journal{cfg: cfg, log: log}

	// Set configuration
	j.setConfig()

	store, err := db.New(ctx, log, cfg, db.TypeLevelDB, "journal")
	if err != nil {
		return nil, err
	}

	conn, ok := store.GetConn().(*leveldb.DB)
	if !ok {
		_ = store.Close()

		return nil, db.ErrGetConnection
	}

	j.store = store
	j.conn = conn

	if j.seq, err = lastSequence(conn); err != nil {
		_ = store.Close()

		return nil, err
	}

	log.Info("journal opened",
		slog.Uint64("sequence", j.seq),
		slog.Bool("sync", j.sync),
	)

	return j, nil
}

// setConfig - set configuration
func (j *Journal) setConfig() {
	j.cfg.SetDefault("JOURNAL_SYNC", false) // fsync every append

	j.sync = j.cfg.GetBool("JOURNAL_SYNC")
}
