package activity

import (
	"testing"
	"time"

	"github.com/egret-dev/egret/internal/document"
)

type fakeSource struct {
	achievements []Achievement
	err          error
}

func (f *fakeSource) Achievements(dir string, since time.Time) ([]Achievement, error) {
	return f.achievements, f.err
}

func entryWithBody(lines ...string) *document.Entry {
	return &document.Entry{
		Begin:     time.Date(2019, 2, 1, 9, 0, 0, 0, time.Local),
		BodyLines: lines,
	}
}

func TestEnrich_AppendsChronologically(t *testing.T) {
	src := &fakeSource{achievements: []Achievement{
		{ID: "bbbbbbb", Summary: "second change"},
		{ID: "aaaaaaa", Summary: "first change"},
	}}
	e := entryWithBody(" - notes")
	Enrich(src, ".", nil)(e)
	want := []string{
		" - notes",
		" - [git:aaaaaaa] first change",
		" - [git:bbbbbbb] second change",
	}
	if len(e.BodyLines) != len(want) {
		t.Fatalf("body = %q", e.BodyLines)
	}
	for i := range want {
		if e.BodyLines[i] != want[i] {
			t.Errorf("body[%d] = %q, want %q", i, e.BodyLines[i], want[i])
		}
	}
}

func TestEnrich_StopsAtKnownID(t *testing.T) {
	src := &fakeSource{achievements: []Achievement{
		{ID: "ccccccc", Summary: "new work"},
		{ID: "bbbbbbb", Summary: "already logged"},
		{ID: "aaaaaaa", Summary: "older work"},
	}}
	// bbbbbbb is present, so the scan stops there: aaaaaaa stays out
	// even though it is not listed, and ccccccc is added.
	e := entryWithBody(" - [git:bbbbbbb] already logged")
	Enrich(src, ".", nil)(e)
	if len(e.BodyLines) != 2 {
		t.Fatalf("body = %q", e.BodyLines)
	}
	if e.BodyLines[1] != " - [git:ccccccc] new work" {
		t.Errorf("body[1] = %q", e.BodyLines[1])
	}
}

func TestEnrich_ShortIDMatches(t *testing.T) {
	src := &fakeSource{achievements: []Achievement{
		{ID: "abcdef0", Summary: "same commit"},
	}}
	e := entryWithBody(" - [git:abcd] same commit")
	Enrich(src, ".", nil)(e)
	if len(e.BodyLines) != 1 {
		t.Errorf("body = %q, want unchanged", e.BodyLines)
	}
}

func TestEnrich_SourceErrorLeavesBody(t *testing.T) {
	src := &fakeSource{err: errTest}
	e := entryWithBody(" - notes")
	Enrich(src, ".", nil)(e)
	if len(e.BodyLines) != 1 {
		t.Errorf("body = %q, want unchanged", e.BodyLines)
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test error" }
