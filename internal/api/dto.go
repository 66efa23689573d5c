package api

import "github.com/egret-dev/egret/internal/projectservice"

// ArchiveRequest is the request body for archiving a project.
type ArchiveRequest struct {
	// Cutoff is a YYYY-MM-DD date; complete months before it are moved
	// into archive files.
	Cutoff string `json:"cutoff"`
}

// ProjectDetail is the full project response type (aliased from the
// domain layer).
type ProjectDetail = projectservice.ProjectDetail

// ProjectListItem is a lightweight item in a list response (aliased
// from the domain layer).
type ProjectListItem = projectservice.ProjectListItem

// ProjectListResponse wraps project listings.
type ProjectListResponse struct {
	Projects []ProjectListItem `json:"projects"`
	Total    int               `json:"total"`
}

// ArchiveResponse wraps the bundles written by an archive run.
type ArchiveResponse struct {
	Archives []projectservice.ArchiveResult `json:"archives"`
}
