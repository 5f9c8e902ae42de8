package commands

import (
	"database/sql"

	"github.com/NV7150/ImOTAR-sub000/config"
	"github.com/NV7150/ImOTAR-sub000/db"
	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

// openHistoryDB opens and migrates the job ledger database. An empty
// path falls back to the configured history path.
func openHistoryDB(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.GetHistoryPath()
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open history database at %s", dbPath)
	}
	return database, nil
}
