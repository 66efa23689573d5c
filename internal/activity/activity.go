// Package activity supplies external activity records, appended under
// a log entry's continuation marker during annotation.
package activity

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/egret-dev/egret/internal/document"
)

// Achievement is one short activity record, newest first.
type Achievement struct {
	// ID is a short stable identifier, used to deduplicate lines
	// already present in an entry body.
	ID      string
	Summary string
	When    time.Time
}

// Source produces activity records for a project directory.
type Source interface {
	// Achievements returns records from since onwards, newest first.
	Achievements(dir string, since time.Time) ([]Achievement, error)
}

var reActivityID = regexp.MustCompile(`^\s+- \[git:([a-f0-9]{4,})\]\s+`)

// Enrich returns the enrichment hook for one project directory: it
// appends one " - [git:id] summary" line per achievement in the
// entry's time span. Lines whose id already appears in the body stop
// the scan, so manually deleted lines are not re-added.
func Enrich(src Source, dir string, log *slog.Logger) document.EnrichFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(e *document.Entry) {
		achievements, err := src.Achievements(dir, e.Begin)
		if err != nil {
			log.Warn("activity lookup failed", "dir", dir, "error", err)
			return
		}

		var seen []string
		for _, line := range e.BodyLines {
			if m := reActivityID.FindStringSubmatch(line); m != nil {
				seen = append(seen, m[1])
			}
		}

		var lines []string
		for _, a := range achievements {
			if known(seen, a.ID) {
				break
			}
			lines = append(lines, fmt.Sprintf(" - [git:%s] %s", a.ID, a.Summary))
		}
		// Achievements arrive newest first; the body reads forward in
		// time.
		for i := len(lines) - 1; i >= 0; i-- {
			e.BodyLines = append(e.BodyLines, lines[i])
		}
	}
}

func known(seen []string, id string) bool {
	for _, s := range seen {
		if strings.HasPrefix(id, s) || strings.HasPrefix(s, id) {
			return true
		}
	}
	return false
}
