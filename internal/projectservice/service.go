// Package projectservice coordinates the work directory, the document
// parser and the task store behind one API used by the HTTP layer, the
// MCP server and the CLI.
package projectservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/egret-dev/egret/internal/activity"
	"github.com/egret-dev/egret/internal/apperr"
	"github.com/egret-dev/egret/internal/checksum"
	"github.com/egret-dev/egret/internal/document"
	"github.com/egret-dev/egret/internal/project"
	"github.com/egret-dev/egret/internal/storage"
	"github.com/egret-dev/egret/internal/tasks"
)

// ProjectDetail is the full representation of a project.
type ProjectDetail struct {
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Lang        string         `json:"lang,omitempty"`
	Archived    bool           `json:"archived,omitempty"`
	Elapsed     int            `json:"elapsed_minutes"`
	Totals      map[string]int `json:"totals"`
	ParseErrors []string       `json:"parse_errors,omitempty"`
	LastUpdated time.Time      `json:"last_updated,omitzero"`
}

// ProjectListItem is a lightweight item in a list response.
type ProjectListItem struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Checksum    string    `json:"checksum"`
	Tags        []string  `json:"tags"`
	Archived    bool      `json:"archived,omitempty"`
	Elapsed     int       `json:"elapsed_minutes"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
}

// ArchiveResult describes one archive bundle written by Archive.
type ArchiveResult struct {
	Path  string `json:"path"`
	Month string `json:"month"`
}

// Options configures a Service.
type Options struct {
	// StateDir holds the per-project sidecar state files.
	StateDir string
	// ArchiveDir is the default directory for archive bundles, relative
	// to the work directory root. Projects override it with the
	// Archive-Dir field.
	ArchiveDir string
	// DefaultTags are applied to every project of the work directory.
	DefaultTags []string
	// Tasks, if set, enables task synchronization during Annotate.
	Tasks tasks.Store
	// Activity, if set, feeds continuation-marker enrichment.
	Activity activity.Source
	// Now overrides the clock. Tests use it.
	Now func() time.Time

	Log *slog.Logger
}

// Service coordinates work-directory and task-store operations.
type Service struct {
	store storage.Provider
	cache *document.VocabularyCache
	opts  Options
}

// NewService creates a project service over a work directory.
func NewService(store storage.Provider, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Service{
		store: store,
		cache: document.NewVocabularyCache(),
		opts:  opts,
	}
}

// ListProjects returns every project of the work directory, sorted by
// name.
func (s *Service) ListProjects(_ context.Context) ([]ProjectListItem, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	items := make([]ProjectListItem, 0, len(metas))
	for _, m := range metas {
		data, err := s.store.Read(m.Path)
		if err != nil {
			// Deleted between list and read.
			continue
		}
		p := s.load(m.Path, data, now)
		items = append(items, ProjectListItem{
			Name:        p.Name(),
			Path:        m.Path,
			Checksum:    m.Checksum,
			Tags:        sortedTags(p.Tags()),
			Archived:    p.Doc.Meta.Archived(),
			Elapsed:     p.Elapsed(now),
			LastUpdated: p.LastUpdated(now),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// GetProject returns the full detail of one project by name.
func (s *Service) GetProject(ctx context.Context, name string) (*ProjectDetail, error) {
	p, data, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(p, data), nil
}

// ReadRaw returns the raw file content of one project by name.
func (s *Service) ReadRaw(ctx context.Context, name string) ([]byte, string, error) {
	p, data, err := s.find(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return data, p.Path, nil
}

// Annotate runs one annotation pass on a project: task sync against the
// store, command materialization, activity enrichment and duration
// totals. The file is rewritten only when the pass changed it.
func (s *Service) Annotate(ctx context.Context, name string) (*ProjectDetail, error) {
	p, data, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()

	opts := project.AnnotateOptions{Today: now, Now: now}
	if s.opts.Tasks != nil {
		opts.Sync = &project.Syncer{
			Store:           s.opts.Tasks,
			State:           project.LoadState(s.opts.StateDir, p.Group()),
			ModifyState:     true,
			SyncAnnotations: true,
			Log:             s.opts.Log,
		}
	}
	if s.opts.Activity != nil {
		dir := filepath.Dir(filepath.Join(s.root(), p.Path))
		opts.Enrich = activity.Enrich(s.opts.Activity, dir, s.opts.Log)
	}
	if err := p.Annotate(opts); err != nil {
		return nil, err
	}

	rendered := p.Render(now)
	if string(rendered) != string(data) {
		if err := s.store.Write(p.Path, rendered); err != nil {
			return nil, err
		}
	}
	return s.buildDetail(p, rendered), nil
}

// Archive moves log entries before cutoff into monthly bundle files and
// rewrites the live project. Returns one result per bundle written.
func (s *Service) Archive(ctx context.Context, name string, cutoff time.Time) ([]ArchiveResult, error) {
	p, _, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()

	bundles, err := p.Archive(cutoff, s.opts.ArchiveDir, now)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return []ArchiveResult{}, nil
	}
	results := make([]ArchiveResult, 0, len(bundles))
	for _, b := range bundles {
		if err := s.store.Write(b.Path, b.Content); err != nil {
			return nil, err
		}
		results = append(results, ArchiveResult{
			Path:  b.Path,
			Month: b.Month.Format("2006-01"),
		})
	}
	if err := s.store.Write(p.Path, p.Render(now)); err != nil {
		return nil, err
	}
	return results, nil
}

// Totals returns the per-tag duration totals of a project, in minutes.
// The empty key aggregates everything.
func (s *Service) Totals(ctx context.Context, name string) (map[string]int, error) {
	p, _, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Doc.Log.Durations(s.opts.Now()), nil
}

// find locates a project by name: a direct "name.egret" path first,
// then a scan matching declared project names.
func (s *Service) find(_ context.Context, name string) (*project.Project, []byte, error) {
	now := s.opts.Now()
	direct := name + storage.Ext
	if data, err := s.store.Read(direct); err == nil {
		return s.load(direct, data, now), data, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}

	metas, err := s.store.List("")
	if err != nil {
		return nil, nil, err
	}
	for _, m := range metas {
		data, err := s.store.Read(m.Path)
		if err != nil {
			continue
		}
		p := s.load(m.Path, data, now)
		if p.Name() == name || p.Group() == name {
			return p, data, nil
		}
	}
	return nil, nil, apperr.ErrNotFound
}

func (s *Service) load(path string, data []byte, now time.Time) *project.Project {
	p := project.Load(path, data, s.cache, now)
	p.SetDefaultTags(s.opts.DefaultTags)
	return p
}

func (s *Service) buildDetail(p *project.Project, data []byte) *ProjectDetail {
	now := s.opts.Now()
	return &ProjectDetail{
		Name:        p.Name(),
		Path:        p.Path,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        sortedTags(p.Tags()),
		Lang:        p.Doc.Meta.Lang(),
		Archived:    p.Doc.Meta.Archived(),
		Elapsed:     p.Elapsed(now),
		Totals:      p.Doc.Log.Durations(now),
		ParseErrors: p.Doc.ParseErrors(),
		LastUpdated: p.LastUpdated(now),
	}
}

func (s *Service) root() string {
	if fs, ok := s.store.(*storage.FS); ok {
		return fs.Root()
	}
	return "."
}

func sortedTags(set map[string]struct{}) []string {
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
