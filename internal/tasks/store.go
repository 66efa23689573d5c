// Package tasks defines the external task store contract consumed by
// the synchronization engine.
//
// Lookups report a missing record with apperr.ErrNotFound; any other
// error means the store itself is unavailable and the caller must abort
// without committing state. Creation is not safely retriable: retrying
// a failed create may duplicate a task.
package tasks

import "github.com/egret-dev/egret/internal/models"

// Store is the external task tracking store.
type Store interface {
	// Create adds a pending task and returns the stored record.
	Create(description, project string, tags []string, attributes map[string]string) (*models.TaskRecord, error)
	// GetByUUID returns the record with the given identifier.
	GetByUUID(uuid string) (*models.TaskRecord, error)
	// GetByDescription returns a record matching the description
	// exactly, preferring pending ones.
	GetByDescription(description string) (*models.TaskRecord, error)
	// Filter returns every record belonging to a project.
	Filter(project string) ([]*models.TaskRecord, error)
	// MarkDone completes a task, releasing its local id.
	MarkDone(uuid string) error
	// Annotate attaches a timestamped note to a task.
	Annotate(uuid string, entry models.TaskAnnotation) error
	Close() error
}
