package project

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/goodsign/monday"

	"github.com/egret-dev/egret/internal/apperr"
	"github.com/egret-dev/egret/internal/document"
	"github.com/egret-dev/egret/internal/models"
	"github.com/egret-dev/egret/internal/tasks"
)

// Syncer reconciles the task placeholders of a project against the
// task store, in two phases: resolve known placeholders, then create
// new ones and merge store-side changes back into the document.
//
// A store failure other than a missing record aborts the whole pass
// with apperr.ErrStoreUnavailable and leaves the persisted state
// untouched.
type Syncer struct {
	Store tasks.Store
	State *State

	// ModifyState enables the mutating half: creating tasks and saving
	// the sidecar state. When false the pass only resolves.
	ModifyState bool
	// SyncAnnotations turns store annotations into dated log lines.
	SyncAnnotations bool

	Log *slog.Logger

	// newLog collects synthesized lines, grouped by formatted date.
	newLog map[string][]document.BodyEntry
}

// Run executes one synchronization pass over the project.
func (s *Syncer) Run(p *Project) error {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	s.newLog = make(map[string][]document.BodyEntry)

	body := p.Doc.Body
	projTags := p.Tags()

	// Phase one: resolve placeholders already known to the store.
	for _, t := range body.Tasks {
		if err := s.resolve(p, t, projTags); err != nil {
			return err
		}
	}

	if s.ModifyState {
		for _, t := range body.Tasks {
			if !t.IsNew {
				continue
			}
			if err := s.create(p, t, projTags); err != nil {
				return err
			}
		}
	}

	// Identifiers of tasks known completed or deleted.
	oldUUIDs := make(map[string]struct{})
	for _, u := range s.State.Tasks.OldUUIDs {
		oldUUIDs[u] = struct{}{}
	}
	knownUUIDs := make(map[string]struct{})
	for u := range oldUUIDs {
		knownUUIDs[u] = struct{}{}
	}
	for _, t := range body.Tasks {
		if t.UUID != "" {
			knownUUIDs[t.UUID] = struct{}{}
		}
	}

	// Phase two: walk every store record of the project and merge what
	// the document does not know yet.
	records, err := s.Store.Filter(p.Group())
	if err != nil {
		return fmt.Errorf("%w: filter %s: %w", apperr.ErrStoreUnavailable, p.Group(), err)
	}
	var foreign []document.BodyEntry
	for _, rec := range records {
		if s.SyncAnnotations {
			s.mergeAnnotations(p, rec)
		}
		if rec.LocalID == 0 {
			if _, old := oldUUIDs[rec.UUID]; !old {
				s.mergeCompleted(p, rec)
				oldUUIDs[rec.UUID] = struct{}{}
			}
			continue
		}
		// Reactivated tasks come back from the dead list.
		if _, old := oldUUIDs[rec.UUID]; old {
			delete(oldUUIDs, rec.UUID)
			delete(knownUUIDs, rec.UUID)
		}
		if _, known := knownUUIDs[rec.UUID]; known {
			continue
		}
		// Created directly in the store: surface it in the file.
		foreign = append(foreign, s.placeholderFor(p, rec, projTags))
	}

	if len(foreign) > 0 {
		body.Prepend(append(foreign, &document.EmptyLine{}))
	}
	if len(s.newLog) > 0 {
		dates := make([]string, 0, len(s.newLog))
		for d := range s.newLog {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		var block []document.BodyEntry
		for _, d := range dates {
			block = append(block, &document.Line{Text: d + ":"})
			block = append(block, s.newLog[d]...)
		}
		block = append(block, &document.EmptyLine{})
		body.Prepend(block)
	}

	if s.ModifyState {
		ids := make(map[string]string)
		for _, t := range body.Tasks {
			if t.IsOrphan || !t.HasID || t.UUID == "" {
				continue
			}
			ids[strconv.Itoa(t.ID)] = t.UUID
		}
		s.State.Tasks.IDs = ids
		s.State.Tasks.OldUUIDs = s.State.Tasks.OldUUIDs[:0]
		for u := range oldUUIDs {
			s.State.Tasks.OldUUIDs = append(s.State.Tasks.OldUUIDs, u)
		}
		sort.Strings(s.State.Tasks.OldUUIDs)
		if err := s.State.Save(); err != nil {
			return err
		}
	}
	return nil
}

// resolve matches one placeholder to a store record: by persisted id
// mapping first, by description as a fallback, orphan as a last
// resort. Content is never dropped.
func (s *Syncer) resolve(p *Project, t *document.TaskPlaceholder, projTags map[string]struct{}) error {
	if t.IsNew {
		return nil
	}

	if uuid, ok := s.State.Tasks.IDs[strconv.Itoa(t.ID)]; ok {
		rec, err := s.Store.GetByUUID(uuid)
		switch {
		case err == nil:
			s.adopt(t, rec, projTags)
			return nil
		case errors.Is(err, apperr.ErrNotFound):
			// Vanished between syncs; fall back to description.
		default:
			return fmt.Errorf("%w: get %s: %w", apperr.ErrStoreUnavailable, uuid, err)
		}
	}

	rec, err := s.Store.GetByDescription(t.Description)
	switch {
	case err == nil:
		s.adopt(t, rec, projTags)
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		t.IsOrphan = true
		s.Log.Warn("task placeholder has no store record", "project", p.Group(), "id", t.ID, "description", t.Description)
		return nil
	default:
		return fmt.Errorf("%w: lookup by description: %w", apperr.ErrStoreUnavailable, err)
	}
}

// create adds a new placeholder to the store, tagging it with the
// project default tags.
func (s *Syncer) create(p *Project, t *document.TaskPlaceholder, projTags map[string]struct{}) error {
	tagSet := make(map[string]struct{})
	for tag := range projTags {
		tagSet[tag] = struct{}{}
	}
	for tag := range t.Tags {
		tagSet[tag] = struct{}{}
	}
	tagList := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tagList = append(tagList, tag)
	}
	sort.Strings(tagList)

	rec, err := s.Store.Create(t.Description, p.Group(), tagList, t.Attributes)
	if err != nil {
		return fmt.Errorf("%w: create %q: %w", apperr.ErrStoreUnavailable, t.Description, err)
	}
	t.IsNew = false
	s.adopt(t, rec, projTags)
	return nil
}

// adopt copies a store record into a placeholder.
func (s *Syncer) adopt(t *document.TaskPlaceholder, rec *models.TaskRecord, projTags map[string]struct{}) {
	t.UUID = rec.UUID
	t.Resolved = true
	t.Status = rec.Status
	t.Modified = rec.Modified
	t.Description = rec.Description
	t.ZeroID = rec.LocalID == 0
	if rec.LocalID != 0 {
		t.ID = rec.LocalID
		t.HasID = true
	} else {
		t.HasID = false
	}
	t.Tags = make(map[string]struct{})
	for _, tag := range rec.Tags {
		if _, hidden := projTags[tag]; !hidden {
			t.Tags[tag] = struct{}{}
		}
	}
	t.DependsOn = t.DependsOn[:0]
	for _, dep := range rec.DependsOn {
		depRec, err := s.Store.GetByUUID(dep)
		if err != nil || depRec.LocalID == 0 {
			continue
		}
		t.DependsOn = append(t.DependsOn, depRec.LocalID)
	}
}

// placeholderFor builds a placeholder for a record created directly in
// the store.
func (s *Syncer) placeholderFor(p *Project, rec *models.TaskRecord, projTags map[string]struct{}) *document.TaskPlaceholder {
	t := &document.TaskPlaceholder{
		Tags:       make(map[string]struct{}),
		Attributes: make(map[string]string),
	}
	s.adopt(t, rec, projTags)
	return t
}

// mergeAnnotations turns unseen store annotations into dated log
// lines, deduplicated by (identifier, timestamp) in the sidecar state.
func (s *Syncer) mergeAnnotations(p *Project, rec *models.TaskRecord) {
	for _, a := range rec.Annotations {
		iso := a.Entry.Format(time.RFC3339)
		if s.State.KnowsAnnotation(rec.UUID, iso) {
			continue
		}
		s.State.AddAnnotation(rec.UUID, iso)
		s.addLogLine(p, a.Entry, fmt.Sprintf("%s: %s", rec.Description, a.Text))
	}
}

// mergeCompleted adds one log line for a task completed in the store.
func (s *Syncer) mergeCompleted(p *Project, rec *models.TaskRecord) {
	if rec.Status != models.StatusCompleted {
		return
	}
	s.addLogLine(p, rec.Modified, "[completed] "+rec.Description)
}

func (s *Syncer) addLogLine(p *Project, date time.Time, text string) {
	key := monday.Format(date, DateFormat, p.Locale())
	s.newLog[key] = append(s.newLog[key], &document.BulletListLine{
		Indent: "  ",
		Bullet: "- ",
		Text:   text,
	})
}
