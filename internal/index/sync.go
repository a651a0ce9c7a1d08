package index

import (
	"log/slog"

	"github.com/starford/mdql/internal/checksum"
	"github.com/starford/mdql/internal/parser"
	"github.com/starford/mdql/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new or changed files are parsed and their tasks replaced
//   - files removed from disk are dropped from the index
//
// It returns the number of files (re)indexed.
func Sync(db TaskIndex, store storage.Provider, logger *slog.Logger) (int, error) {
	metas, err := store.List("")
	if err != nil {
		return 0, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return 0, err
	}

	indexed := 0
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteFile(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	return indexed, nil
}

// IndexFile parses data and replaces the file's tasks in the index.
func IndexFile(db TaskIndex, path string, data []byte) error {
	f, tasks := RowsFor(path, checksum.Sum(data), parser.Parse(data))
	return db.UpsertFile(f, tasks)
}
