package document

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Document is one parsed project file: an optional metadata header, a
// chronological log and a free-form body. All three sections are
// created fresh on every parse.
type Document struct {
	Meta *Meta
	Log  *Log
	Body *Body

	// Dates is the resolver used while parsing the log; it keeps the
	// running default date of the session.
	Dates *DateResolver
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Meta: NewMeta(), Log: &Log{}, Body: NewBody()}
}

// Parse reads a whole project file from the cursor. Section detection
// follows a fixed priority: a first line that starts a log wins over
// one that also looks like a metadata field, so files beginning with a
// bare-year log and no header parse correctly.
//
// Parse errors are recovered locally and surfaced through the
// Parse-Errors metadata field, which is regenerated on every parse and
// removed once the offending lines parse cleanly.
func (d *Document) Parse(c *Cursor, cache *VocabularyCache, now time.Time) {
	var errs []string

	first := c.Peek()
	if first == nil {
		return
	}
	if !IsLogStartLine(*first) && IsMetaStartLine(*first) {
		errs = append(errs, d.Meta.Parse(c)...)
	}
	c.SkipEmptyLines()

	d.Dates = NewDateResolver(d.Meta.Lang(), cache, now)

	if line := c.Peek(); line != nil && IsLogStartLine(*line) {
		errs = append(errs, d.Log.Parse(c, d.Dates, d.Meta.Lang())...)
		c.SkipEmptyLines()
	}

	for tag := range d.Meta.Tags {
		d.Body.Tags[tag] = struct{}{}
	}
	d.Body.Parse(c)

	if len(errs) > 0 {
		d.Meta.Set("parse-errors", strings.Join(errs, "\n"))
	} else {
		d.Meta.Unset("parse-errors")
	}
}

// ParseErrors returns the recorded parse errors, one per line. Nil
// when the last parse was clean.
func (d *Document) ParseErrors() []string {
	v := d.Meta.Get("parse-errors")
	if v == "" {
		return nil
	}
	return strings.Split(v, "\n")
}

// ParseText parses a project file from a string.
func ParseText(name, text string, cache *VocabularyCache, now time.Time) *Document {
	d := NewDocument()
	d.Parse(NewCursor(name, text), cache, now)
	return d
}

// Print writes the document back in file format, sections separated by
// one empty line.
func (d *Document) Print(w io.Writer, today time.Time) {
	if d.Meta.Print(w) {
		fmt.Fprintln(w)
	}
	if d.Log.Print(w, today, d.Meta.Archived()) {
		fmt.Fprintln(w)
	}
	d.Body.Print(w)
}

// Render returns the document in file format as a string.
func (d *Document) Render(today time.Time) string {
	var b strings.Builder
	d.Print(&b, today)
	return b.String()
}
