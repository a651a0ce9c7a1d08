// Package storage gives the rest of mdql slash-separated, vault-relative
// access to task files.
package storage

import "github.com/starford/mdql/internal/models"

// Provider reads and writes task files inside a vault.
type Provider interface {
	List(dir string) ([]models.FileMetadata, error)
	Read(path string) ([]byte, error)
	Write(path string, content []byte) error
}

var _ Provider = (*FS)(nil)
