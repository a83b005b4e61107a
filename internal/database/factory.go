package database

import (
	"fmt"
	"os"
	"path/filepath"

	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
)

// journalFile is the journal database name inside the data directory.
const journalFile = "journal.db"

// NewJournalFromConfig creates a Journal implementation based on the journal config type.
func NewJournalFromConfig(cfg config.JournalConfig) (arclight.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		return openJournal(filepath.Join(cfg.DataDir, journalFile))
	case "memory":
		return openJournal(":memory:")
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}

// openJournal keeps a failed open from leaking a typed nil into the interface.
func openJournal(path string) (arclight.Journal, error) {
	j, err := NewSQLiteJournal(path)
	if err != nil {
		return nil, err
	}
	return j, nil
}
