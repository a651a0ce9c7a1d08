package index

// TaskIndex is the cache of every task in the vault. Consumers depend on this
// interface rather than on *DB so they can be tested with fakes.
type TaskIndex interface {
	UpsertFile(f FileRow, tasks []TaskRow) error
	DeleteFile(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ListFiles() ([]FileRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

var _ TaskIndex = (*DB)(nil)
