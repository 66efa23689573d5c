package document

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	reMetaHead = regexp.MustCompile(`^\w.*:`)
	reTagSplit = regexp.MustCompile(`[ ,\t]+`)
)

type metaField struct {
	name  string // lowercase
	value string
}

// Meta is the metadata section of a project file: an ordered mapping of
// lowercase field names to raw string values. It is the first section
// of the file and can be omitted.
type Meta struct {
	fields []metaField
	index  map[string]int

	// Tags holds the tag set extracted from the "tags" field at parse
	// time. It is not re-derived on access.
	Tags map[string]struct{}

	lineno int
}

// NewMeta returns an empty metadata section.
func NewMeta() *Meta {
	return &Meta{index: make(map[string]int), Tags: make(map[string]struct{})}
}

// Copy returns a deep copy of the metadata.
func (m *Meta) Copy() *Meta {
	res := NewMeta()
	res.fields = append(res.fields, m.fields...)
	for k, v := range m.index {
		res.index[k] = v
	}
	for t := range m.Tags {
		res.Tags[t] = struct{}{}
	}
	return res
}

// Has reports whether the given field is set.
func (m *Meta) Has(name string) bool {
	_, ok := m.index[strings.ToLower(name)]
	return ok
}

// Get returns the raw value of a field, or "" if unset.
func (m *Meta) Get(name string) string {
	if i, ok := m.index[strings.ToLower(name)]; ok {
		return m.fields[i].value
	}
	return ""
}

// Set sets the value of a field, keeping its original position if the
// field already exists and appending it otherwise.
func (m *Meta) Set(name, value string) {
	name = strings.ToLower(name)
	if i, ok := m.index[name]; ok {
		m.fields[i].value = value
		return
	}
	m.index[name] = len(m.fields)
	m.fields = append(m.fields, metaField{name: name, value: value})
}

// Unset removes a field if it exists.
func (m *Meta) Unset(name string) {
	name = strings.ToLower(name)
	i, ok := m.index[name]
	if !ok {
		return
	}
	m.fields = append(m.fields[:i], m.fields[i+1:]...)
	delete(m.index, name)
	for k, v := range m.index {
		if v > i {
			m.index[k] = v - 1
		}
	}
}

// Lang returns the project language code, if set.
func (m *Meta) Lang() string { return m.Get("lang") }

// Name returns the project name field, if set.
func (m *Meta) Name() string { return m.Get("name") }

// Archived reports whether the project is marked archived.
func (m *Meta) Archived() bool {
	switch strings.ToLower(m.Get("archived")) {
	case "true", "yes":
		return true
	}
	return false
}

// StartDate returns the explicit begin date of the project, zero if
// unset or malformed.
func (m *Meta) StartDate() time.Time { return m.isoDate("start-date") }

// EndDate returns the explicit end date of the project, zero if unset
// or malformed.
func (m *Meta) EndDate() time.Time { return m.isoDate("end-date") }

func (m *Meta) isoDate(field string) time.Time {
	v := m.Get(field)
	if v == "" {
		return time.Time{}
	}
	d, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return d
}

// SetDurations fills the Total field from per-tag durations in minutes,
// keyed by tag with "" for the aggregate across all entries.
func (m *Meta) SetDurations(durations map[string]int) {
	if len(durations) == 1 {
		m.Set("total", FormatDuration(durations[""]))
		return
	}
	tags := make([]string, 0, len(durations))
	for tag := range durations {
		if tag == "" {
			tag = "*"
		}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	lines := make([]string, 0, len(tags))
	for _, tag := range tags {
		key := tag
		if tag == "*" {
			key = ""
		}
		lines = append(lines, fmt.Sprintf("%s: %s", tag, FormatDuration(durations[key])))
	}
	m.Set("total", strings.Join(lines, "\n"))
}

// Parse consumes the metadata section: everything up to the first empty
// line or end of input. Continuation lines (indented) fold into the
// previous field's value, joined by newline with one leading space
// stripped. Returns one message per malformed line.
func (m *Meta) Parse(c *Cursor) []string {
	m.lineno = c.Lineno()

	var errs []string
	last := -1
	for {
		line := c.Peek()
		if line == nil || *line == "" {
			c.SkipEmptyLines()
			break
		}
		lineno := c.Lineno()
		l := *c.Next()

		if l[0] == ' ' || l[0] == '\t' {
			if last < 0 {
				errs = append(errs, fmt.Sprintf("line %d: continuation line with no field to continue", lineno+1))
				continue
			}
			cont := strings.TrimPrefix(l, " ")
			f := &m.fields[last]
			if f.value == "" {
				f.value = cont
			} else {
				f.value += "\n" + cont
			}
			continue
		}

		name, value, ok := strings.Cut(l, ":")
		if !ok {
			errs = append(errs, fmt.Sprintf("line %d: malformed metadata field %q", lineno+1, l))
			last = -1
			continue
		}
		m.Set(name, strings.TrimSpace(value))
		last = m.index[strings.ToLower(name)]
	}

	// Extract well known values.
	if f := m.Get("tags"); f != "" {
		for _, t := range reTagSplit.Split(f, -1) {
			if t != "" {
				m.Tags[t] = struct{}{}
			}
		}
	}
	return errs
}

// Print writes the metadata section. Multi-line values print the key
// alone followed by one-space-indented lines. Returns true if anything
// was printed.
func (m *Meta) Print(w io.Writer) bool {
	res := false
	for _, f := range m.fields {
		res = true
		if strings.Contains(f.value, "\n") {
			fmt.Fprintf(w, "%s:\n", titleKey(f.name))
			for _, line := range strings.Split(f.value, "\n") {
				fmt.Fprintf(w, " %s\n", line)
			}
		} else {
			fmt.Fprintf(w, "%s: %s\n", titleKey(f.name), strings.TrimSpace(f.value))
		}
	}
	return res
}

// IsMetaStartLine reports whether a line looks like the start of a
// metadata section.
func IsMetaStartLine(line string) bool {
	return reMetaHead.MatchString(line)
}

// titleKey capitalizes the first letter of each dash- or
// space-separated word: "parse-errors" becomes "Parse-Errors".
func titleKey(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if upper && r >= 'a' && r <= 'z' {
			b.WriteRune(r - 'a' + 'A')
		} else {
			b.WriteRune(r)
		}
		upper = !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}
	return b.String()
}
