// Package project implements the project entity: one parsed .egret
// file plus its sidecar state, with the synchronization and archiving
// operations that work on it.
package project

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"github.com/egret-dev/egret/internal/document"
	"github.com/egret-dev/egret/internal/storage"
)

// Go layouts used when generating log heads and annotation dates.
const (
	DateFormat = "02 January"
	TimeFormat = "15:04"
	isoDate    = "2006-01-02"
)

// Project is one project file.
type Project struct {
	// Path of the file, relative to the work directory root.
	Path string
	// DefaultTags are applied to every task of the project in addition
	// to the metadata tags.
	DefaultTags map[string]struct{}

	Doc *document.Document

	defaultName string
}

// Load parses a project file.
func Load(path string, data []byte, cache *document.VocabularyCache, now time.Time) *Project {
	p := &Project{
		Path:        path,
		DefaultTags: make(map[string]struct{}),
		defaultName: defaultName(path),
	}
	p.Doc = document.ParseText(path, string(data), cache, now)
	return p
}

// SetDefaultTags applies work-directory level default tags; they are
// hidden when rendering task placeholders, like metadata tags.
func (p *Project) SetDefaultTags(tags []string) {
	for _, t := range tags {
		p.DefaultTags[t] = struct{}{}
		p.Doc.Body.Tags[t] = struct{}{}
	}
}

// defaultName derives a project name from its file path: the file name
// without extension, or the directory name for a bare ".egret" file.
func defaultName(path string) string {
	base := filepath.Base(path)
	if base == storage.Ext {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, storage.Ext)
}

// Group returns the name shared by a project and its archived slices.
func (p *Project) Group() string {
	if name := p.Doc.Meta.Name(); name != "" {
		return name
	}
	return p.defaultName
}

// Name returns the project name. Archived projects carry the end date
// of their period, so slices of the same project stay distinct.
func (p *Project) Name() string {
	name := p.Group()
	if !p.Doc.Meta.Archived() {
		return name
	}
	since, until := p.FormalPeriod(time.Now())
	if !until.IsZero() {
		return name + "-" + until.Format(isoDate)
	}
	if !since.IsZero() {
		return name + "-" + since.Format(isoDate)
	}
	return name
}

// Tags returns the project tag set: default tags plus metadata tags.
func (p *Project) Tags() map[string]struct{} {
	res := make(map[string]struct{})
	for t := range p.DefaultTags {
		res[t] = struct{}{}
	}
	for t := range p.Doc.Meta.Tags {
		res[t] = struct{}{}
	}
	return res
}

// Locale returns the monday locale for the project language.
func (p *Project) Locale() monday.Locale {
	if p.Doc.Dates != nil {
		return p.Doc.Dates.Locale()
	}
	return monday.LocaleEnUS
}

// Elapsed returns the total logged minutes.
func (p *Project) Elapsed(now time.Time) int {
	return p.Doc.Log.Durations(now)[""]
}

// LastUpdated returns the end of the last log entry, or now for an
// open one. Zero if the log is empty.
func (p *Project) LastUpdated(now time.Time) time.Time {
	last := p.Doc.Log.LastEntry()
	if last == nil {
		return time.Time{}
	}
	if last.Until.IsZero() {
		return now
	}
	return last.Until
}

// FormalPeriod computes the begin and end dates of the project:
// explicit Start-Date and End-Date metadata when present, else the
// first and last log entries.
func (p *Project) FormalPeriod(today time.Time) (since, until time.Time) {
	if d := p.Doc.Meta.StartDate(); !d.IsZero() {
		since = d
	} else if e := p.Doc.Log.FirstEntry(); e != nil {
		since = e.Begin
	} else {
		since = today
	}

	if d := p.Doc.Meta.EndDate(); !d.IsZero() {
		until = d
	} else if e := p.Doc.Log.LastEntry(); e != nil {
		if e.Until.IsZero() {
			until = today
		} else {
			until = e.Until
		}
	} else {
		until = today
	}
	return since, until
}

// Render serializes the project back to file format.
func (p *Project) Render(today time.Time) []byte {
	return []byte(p.Doc.Render(today))
}

// AnnotateOptions drives Annotate.
type AnnotateOptions struct {
	// Today dates materialized log commands; Now measures open entries.
	Today time.Time
	Now   time.Time

	// Sync, if set, runs task synchronization against the store first.
	Sync *Syncer

	// Enrich appends activity lines to entries carrying a continuation
	// marker.
	Enrich document.EnrichFunc
}

// Annotate fills in fields, resolves commands and performs the pending
// actions embedded in the project: task sync, log sync, duration
// totals.
func (p *Project) Annotate(opts AnnotateOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if opts.Sync != nil {
		if err := opts.Sync.Run(p); err != nil {
			return err
		}
	}
	p.Doc.Log.Sync(document.SyncOptions{
		Today:      opts.Today,
		DateFormat: DateFormat,
		TimeFormat: TimeFormat,
		Locale:     p.Locale(),
		Enrich:     opts.Enrich,
	})
	if p.Doc.Meta.Has("total") {
		p.Doc.Meta.SetDurations(p.Doc.Log.Durations(now))
	}
	return nil
}
