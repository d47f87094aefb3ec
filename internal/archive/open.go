package archive

import (
	"fmt"
	"log/slog"

	"RagChat/internal/config"
)

// Open returns the archive selected by cfg and a func that releases it. A
// configured archive URL wins over the local backends.
func Open(cfg *config.Config, logger *slog.Logger) (Archive, func() error, error) {
	noop := func() error { return nil }

	if cfg.ArchiveURL != "" {
		return NewClient(cfg.ArchiveURL, "./"+cfg.ConversationsDir, nil), noop, nil
	}

	switch cfg.ArchiveBackend {
	case config.ArchiveSQLite:
		store, err := NewSQLiteStore(cfg.ArchiveDBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.ArchiveBolt:
		store, err := NewBoltStore(cfg.ArchiveDBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.ArchiveFile, "":
		store, err := NewFileStore(cfg.ConversationsDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive backend: %s", cfg.ArchiveBackend)
	}
}
