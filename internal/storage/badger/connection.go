package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/scriptor/internal/common"
)

// gcInterval is how often the value log garbage collector runs. Article
// artifacts churn on regeneration, so reclaiming dead versions matters on
// long-lived installs.
const gcInterval = 10 * time.Minute

// BadgerDB wraps the badgerhold store together with its GC loop
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	stopGC chan struct{}
}

// NewBadgerDB opens (and if configured, resets) the Badger database at the
// configured path and starts the value log GC loop.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if err := prepareDataDir(logger, config); err != nil {
		return nil, err
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // arbor owns the log output

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	db := &BadgerDB{
		store:  store,
		logger: logger,
		stopGC: make(chan struct{}),
	}
	go db.runValueLogGC()

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")
	return db, nil
}

// prepareDataDir makes sure the database directory exists, wiping any
// previous contents first when reset_on_startup is set.
func prepareDataDir(logger arbor.ILogger, config *common.BadgerConfig) error {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// runValueLogGC reclaims value log space on a timer until Close. Badger
// returns ErrNoRewrite when there is nothing to collect; that is the common
// case and not worth logging.
func (b *BadgerDB) runValueLogGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.store.Badger().RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Warn().Err(err).Msg("Badger value log GC failed")
			}
		case <-b.stopGC:
			return
		}
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close stops the GC loop and closes the database
func (b *BadgerDB) Close() error {
	if b.stopGC != nil {
		close(b.stopGC)
		b.stopGC = nil
	}
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
