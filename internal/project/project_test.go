package project

import (
	"strings"
	"testing"
	"time"

	"github.com/egret-dev/egret/internal/document"
)

func loadProject(t *testing.T, text string, year int) *Project {
	t.Helper()
	now := time.Date(year, time.June, 15, 10, 0, 0, 0, time.Local)
	return Load("test.egret", []byte(text), document.NewVocabularyCache(), now)
}

func TestProject_Names(t *testing.T) {
	p := loadProject(t, "2019\n01 february: 09:00-10:00 1h\n", 2019)
	if got := p.Name(); got != "test" {
		t.Errorf("name = %q, want %q", got, "test")
	}

	p = loadProject(t, "Name: custom\n\n2019\n01 february: 09:00-10:00 1h\n", 2019)
	if got := p.Name(); got != "custom" {
		t.Errorf("name = %q, want %q", got, "custom")
	}
}

func TestProject_DefaultNameFromDir(t *testing.T) {
	now := time.Date(2019, 6, 15, 0, 0, 0, 0, time.Local)
	p := Load("myproj/.egret", nil, document.NewVocabularyCache(), now)
	if got := p.Name(); got != "myproj" {
		t.Errorf("name = %q, want %q", got, "myproj")
	}
}

func TestProject_ArchivedNameCarriesPeriod(t *testing.T) {
	text := "Archived: yes\n\n2019\n01 february: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	want := "test-2019-02-01"
	if got := p.Name(); got != want {
		t.Errorf("name = %q, want %q", got, want)
	}
}

func TestProject_Elapsed(t *testing.T) {
	text := "2019\n01 february: 09:00-10:00 1h\n02 february: 09:00-11:00 2h\n"
	p := loadProject(t, text, 2019)
	if got := p.Elapsed(time.Now()); got != 180 {
		t.Errorf("elapsed = %d, want 180", got)
	}
}

func TestProject_FormalPeriodFromMeta(t *testing.T) {
	text := "Start-Date: 2018-01-01\nEnd-Date: 2019-12-31\n\n2019\n01 february: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	since, until := p.FormalPeriod(time.Now())
	if since.Year() != 2018 || until.Year() != 2019 || until.Month() != time.December {
		t.Errorf("period = %v..%v", since, until)
	}
}

func TestProject_AnnotateMaterializesCommands(t *testing.T) {
	p := loadProject(t, "2020\n01 january: 09:00-10:00 1h\n", 2020)
	// Append a pending command the way an editor session would.
	p.Doc.Log.Entries = append(p.Doc.Log.Entries, &document.Command{
		Head:  "11:00",
		Start: &document.TimeOfDay{Hour: 11},
	})
	today := time.Date(2020, 1, 2, 0, 0, 0, 0, time.Local)
	if err := p.Annotate(AnnotateOptions{Today: today, Now: today}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	last := p.Doc.Log.LastEntry()
	if last == nil || last.Head != "02 January: 11:00-" {
		t.Errorf("last entry = %+v", last)
	}
}

func TestProject_AnnotateUpdatesTotal(t *testing.T) {
	// The header needs a lead field that cannot pass for a log entry:
	// "Total: 0h" alone would be consumed by the log, duration note and
	// all.
	text := "Name: x\nTotal: 0h\n\n2019\n01 february: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)
	if err := p.Annotate(AnnotateOptions{Today: now, Now: now}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if got := p.Doc.Meta.Get("total"); got != "1h" {
		t.Errorf("total = %q, want %q", got, "1h")
	}
}

func TestProject_AnnotateKeepsTotalAbsent(t *testing.T) {
	p := loadProject(t, "2019\n01 february: 09:00-10:00 1h\n", 2019)
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)
	if err := p.Annotate(AnnotateOptions{Today: now, Now: now}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if p.Doc.Meta.Has("total") {
		t.Error("total should not appear unless already present")
	}
}

func TestProject_RenderRoundTrip(t *testing.T) {
	text := "Name: test\n\n2019\n01 february: 09:00-10:00 1h\n\nnotes\n"
	p := loadProject(t, text, 2019)
	got := string(p.Render(time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)))
	if got != text {
		t.Errorf("rendered:\n%s\nwant:\n%s", got, text)
	}
}

func TestArchive_MonthlyBundles(t *testing.T) {
	text := "Name: test\n" +
		"Tags: tag1\n" +
		"\n" +
		"2019\n" +
		"01 february: 09:00-11:00 2h +tag1 +tag2\n" +
		"02 february: 09:00-10:00 1h +tag1\n" +
		"03 february: 09:00-12:00 3h\n" +
		"01 march: 09:00-10:00 1h\n" +
		"01 april: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)

	cutoff := time.Date(2019, 4, 1, 0, 0, 0, 0, time.Local)
	bundles, err := p.Archive(cutoff, "archive", now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("len(bundles) = %d, want 2", len(bundles))
	}
	if bundles[0].Path != "archive/201902-test.egret" {
		t.Errorf("path = %q", bundles[0].Path)
	}
	if bundles[1].Path != "archive/201903-test.egret" {
		t.Errorf("path = %q", bundles[1].Path)
	}

	feb := string(bundles[0].Content)
	if !strings.Contains(feb, "Archived: yes\n") {
		t.Errorf("february bundle lacks archived flag:\n%s", feb)
	}
	wantTotals := "Total:\n *: 6h\n tag1: 3h\n tag2: 2h\n"
	if !strings.Contains(feb, wantTotals) {
		t.Errorf("february totals wrong:\n%s", feb)
	}
	if !strings.Contains(feb, "01 february: 09:00-11:00 2h +tag1 +tag2\n") {
		t.Errorf("february bundle lacks entries:\n%s", feb)
	}

	// The live document keeps only the cutoff month onwards.
	entries := p.Doc.Log.Timed()
	if len(entries) != 1 || entries[0].Begin.Month() != time.April {
		t.Errorf("remaining entries = %d", len(entries))
	}
}

func TestArchive_SingleMonthTotals(t *testing.T) {
	text := "2019\n01 february: 09:00-10:30 1h 30m\n01 march: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)
	bundles, err := p.Archive(time.Date(2019, 3, 1, 0, 0, 0, 0, time.Local), "archive", now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("len(bundles) = %d, want 1", len(bundles))
	}
	if !strings.Contains(string(bundles[0].Content), "Total: 1h 30m\n") {
		t.Errorf("bundle:\n%s", bundles[0].Content)
	}
}

func TestArchive_Idempotent(t *testing.T) {
	text := "2019\n01 february: 09:00-10:00 1h\n01 april: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	now := time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local)
	cutoff := time.Date(2019, 4, 1, 0, 0, 0, 0, time.Local)

	first, err := p.Archive(cutoff, "archive", now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}
	second, err := p.Archive(cutoff, "archive", now)
	if err != nil {
		t.Fatalf("Archive again: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("len(second) = %d, want 0", len(second))
	}
}

func TestArchive_NoDirNoBundles(t *testing.T) {
	p := loadProject(t, "2019\n01 february: 09:00-10:00 1h\n", 2019)
	bundles, err := p.Archive(time.Date(2019, 6, 1, 0, 0, 0, 0, time.Local), "", time.Now())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(bundles) != 0 {
		t.Errorf("bundles = %v, want none", bundles)
	}
	if got := len(p.Doc.Log.Timed()); got != 1 {
		t.Errorf("entries = %d, want untouched log", got)
	}
}

func TestArchive_MetaDirOverride(t *testing.T) {
	text := "Archive-Dir: old\n\n2019\n01 february: 09:00-10:00 1h\n01 april: 09:00-10:00 1h\n"
	p := loadProject(t, text, 2019)
	bundles, err := p.Archive(time.Date(2019, 4, 1, 0, 0, 0, 0, time.Local), "ignored", time.Now())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(bundles) != 1 || !strings.HasPrefix(bundles[0].Path, "old/") {
		t.Errorf("bundles = %+v", bundles)
	}
}
