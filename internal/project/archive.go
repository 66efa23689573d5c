package project

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/egret-dev/egret/internal/document"
	"github.com/egret-dev/egret/internal/storage"
)

// ArchiveBundle is one rendered monthly archive document.
type ArchiveBundle struct {
	// Path of the archive file, relative to the work directory root.
	Path string
	// Content is the rendered document.
	Content []byte
	// Month is the first day of the archived month.
	Month time.Time
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func nextMonth(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0)
}

// Archive detaches log entries of every calendar month strictly before
// the cutoff's month into one bundle each, and leaves the live
// document with the remaining entries. The partition preserves order:
// archived plus remaining entries equal the original log. Archiving
// twice is idempotent, empty months produce no bundles.
//
// dir is the target directory for bundle paths; the project's
// Archive-Dir metadata field overrides it. With neither set, nothing
// is archived.
func (p *Project) Archive(cutoff time.Time, dir string, now time.Time) ([]ArchiveBundle, error) {
	if meta := p.Doc.Meta.Get("archive-dir"); meta != "" {
		dir = meta
	}
	if dir == "" {
		return nil, nil
	}

	first := p.Doc.Log.FirstEntry()
	if first == nil {
		return nil, nil
	}

	var bundles []ArchiveBundle
	limit := monthStart(cutoff)
	for date := first.Begin; monthStart(date).Before(limit); date = nextMonth(date) {
		entries := p.Doc.Log.DetachEntries(monthStart(date), nextMonth(date))
		if len(entries) == 0 {
			continue
		}
		b, err := p.buildBundle(dir, monthStart(date), entries, now)
		if err != nil {
			return bundles, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// buildBundle renders one month of detached entries as an independent
// archived document carrying the live metadata plus duration totals.
func (p *Project) buildBundle(dir string, month time.Time, entries []document.LogEntry, now time.Time) (ArchiveBundle, error) {
	doc := document.NewDocument()
	doc.Meta = p.Doc.Meta.Copy()
	doc.Meta.Set("archived", "yes")
	doc.Log.Entries = entries
	doc.Meta.SetDurations(doc.Log.Durations(now))

	name := fmt.Sprintf("%s-%s%s", month.Format("200601"), p.Group(), storage.Ext)
	return ArchiveBundle{
		Path:    filepath.Join(dir, name),
		Content: []byte(doc.Render(now)),
		Month:   month,
	}, nil
}
