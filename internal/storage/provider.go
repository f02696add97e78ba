// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/ruin/internal/models"

// Provider is the interface for vault file operations.
// All paths are relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Abs resolves path to an absolute file-system path inside the vault.
	Abs(path string) (string, error)
}
