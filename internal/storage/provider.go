// Package storage defines the work-directory file-system abstraction.
package storage

import "github.com/egret-dev/egret/internal/models"

// Provider is the interface for work-directory file operations.
type Provider interface {
	// List returns metadata for every .egret file under dir (relative to
	// the work directory root).
	List(dir string) ([]models.ProjectMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Move renames oldPath to newPath (both relative to root).
	Move(oldPath, newPath string) error
}
