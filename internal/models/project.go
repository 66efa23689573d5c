// Package models defines the domain types for egret.
package models

import "time"

// Project represents a parsed project file in the work directory.
type Project struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Tags        []string  `json:"tags,omitempty"`
	Lang        string    `json:"lang,omitempty"`
	Archived    bool      `json:"archived,omitempty"`
	Elapsed     int       `json:"elapsed_minutes"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	Checksum    string    `json:"checksum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMetadata is a lightweight representation returned by list
// operations.
type ProjectMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskRecord is one record in the external task store, as consumed by
// the synchronization engine.
type TaskRecord struct {
	UUID        string            `json:"uuid"`
	LocalID     int               `json:"local_id"`
	Description string            `json:"description"`
	Project     string            `json:"project"`
	Tags        []string          `json:"tags,omitempty"`
	Status      string            `json:"status"`
	Modified    time.Time         `json:"modified"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	Annotations []TaskAnnotation  `json:"annotations,omitempty"`
}

// TaskAnnotation is a timestamped note attached to a task record.
type TaskAnnotation struct {
	Entry time.Time `json:"entry"`
	Text  string    `json:"text"`
}

// Task statuses as stored.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusDeleted   = "deleted"
)
