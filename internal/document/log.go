package document

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

var (
	reTimebase = regexp.MustCompile(`^(?:(?P<year>\d{4})|-+\s*(?P<date>.+?))\s*$`)
	reEntry    = regexp.MustCompile(
		`^` +
			`(?P<date>(?:\S| \d)[^:]*):\s*` + // date header
			`(?:(?P<trange>(?P<start>\d+:\d+)\s*-\s*(?P<end>\d+:\d+)?)?)\s*` + // optional time interval
			`(?P<notes>(?:(?:\+\S+|\[[^]]+\]|\d+[a-z]+)\s*)*)` + // tags, hour counts, project name
			`$`)
	reNewTime = regexp.MustCompile(
		`^(?P<start>\d+:\d+)\s*` +
			`(?:-\s*(?P<end>\d+:\d+)?)?\s*` +
			`(?P<notes>(?:(?:\+\S+|\[[^]]+\]|\d+[a-z]+)\s*)*)` +
			`(?P<cont>\+)?\s*$`)
	reNewDay = regexp.MustCompile(`^\+\+?\s*$`)
)

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func parseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("not a hh:mm time: %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("not a hh:mm time: %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || hour > 24 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("not a hh:mm time: %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// At combines the time of day with a date.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// LogEntry is one element of the log section: a Timebase, an Entry, or
// a Command. The set of implementations is closed; rendering and sync
// switch exhaustively over them.
type LogEntry interface {
	// ReferenceTime returns the time context this element establishes
	// for the following ones, zero if none.
	ReferenceTime() time.Time
	// Print writes the element in file format.
	Print(w io.Writer)

	// printLeadTimeref writes the year context needed to reparse this
	// element when it is the first of a printed log.
	printLeadTimeref(w io.Writer, today time.Time)
}

// Timebase is a log line establishing a year or date context for the
// entries after it; it logs no time span itself.
type Timebase struct {
	// Line is the verbatim source line.
	Line string
	// DT is the reference date the line establishes.
	DT time.Time
}

func (t *Timebase) ReferenceTime() time.Time { return t.DT }

func (t *Timebase) Print(w io.Writer) { fmt.Fprintln(w, t.Line) }

func (t *Timebase) printLeadTimeref(io.Writer, time.Time) {
	// A timebase is a full time reference already.
}

// Entry is a dated log entry, the only variant with a duration.
type Entry struct {
	// Begin is the start of the entry's time span.
	Begin time.Time
	// Until is the end of the time span, zero while the entry is open.
	Until time.Time
	// Head is the verbatim head line.
	Head string
	// BodyLines holds the indented lines under the head, verbatim.
	BodyLines []string
	// FullDay marks entries that span the whole day.
	FullDay bool
	// Tags are the +tags parsed from the head line.
	Tags []string
}

func (e *Entry) ReferenceTime() time.Time { return e.Begin }

// IsOpen reports whether the entry is still being edited: full-day
// entries are open on their own day, timed entries until closed.
func (e *Entry) IsOpen(today time.Time) bool {
	if e.FullDay {
		y1, m1, d1 := e.Begin.Date()
		y2, m2, d2 := today.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	return e.Until.IsZero()
}

// Duration returns the entry duration in minutes. Open timed entries
// are measured against now; the result is never persisted.
func (e *Entry) Duration(now time.Time) int {
	if e.FullDay {
		return 24 * 60
	}
	until := e.Until
	if until.IsZero() {
		until = now
	}
	return int(until.Sub(e.Begin) / time.Minute)
}

func (e *Entry) Print(w io.Writer) {
	m := matchNamed(reEntry, e.Head)
	if m == nil {
		// The head parsed as an entry once; print it verbatim rather
		// than lose content.
		fmt.Fprintln(w, e.Head)
	} else {
		parts := []string{m["date"] + ":"}
		if !e.FullDay {
			parts = append(parts, m["trange"])
			if !e.Until.IsZero() {
				parts = append(parts, FormatDuration(e.Duration(e.Until)))
			}
		}
		for _, tag := range e.Tags {
			parts = append(parts, "+"+tag)
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	for _, line := range e.BodyLines {
		fmt.Fprintln(w, line)
	}
}

func (e *Entry) printLeadTimeref(w io.Writer, _ time.Time) {
	fmt.Fprintln(w, e.Begin.Year())
}

// hasContinuationMarker reports whether the last body line is a lone
// "+", requesting activity enrichment.
func (e *Entry) hasContinuationMarker() bool {
	n := len(e.BodyLines)
	return n > 0 && strings.TrimSpace(e.BodyLines[n-1]) == "+"
}

// Command is an unresolved log request, to be materialized into an
// Entry on the next sync: a start time opens a timed entry today, a
// bare "+" or "++" opens a full-day entry.
type Command struct {
	// Head is the verbatim head line.
	Head string
	// BodyLines holds the indented lines under the head, verbatim.
	BodyLines []string
	// Start and End are the optional times from the head.
	Start *TimeOfDay
	End   *TimeOfDay
	// Tags are the +tags parsed from the head line.
	Tags []string
	// Continue carries a trailing continuation marker into the
	// materialized entry.
	Continue bool
}

func (c *Command) ReferenceTime() time.Time { return time.Time{} }

func (c *Command) Print(w io.Writer) {
	fmt.Fprintln(w, c.Head)
	for _, line := range c.BodyLines {
		fmt.Fprintln(w, line)
	}
}

func (c *Command) printLeadTimeref(w io.Writer, today time.Time) {
	// A command carries no date of its own; the best available context
	// is the current year.
	fmt.Fprintln(w, today.Year())
}

// EnrichFunc appends activity lines (for example from a version control
// log) to an entry whose continuation marker was just consumed.
type EnrichFunc func(e *Entry)

// SyncOptions drives Log.Sync.
type SyncOptions struct {
	// Today dates materialized commands.
	Today time.Time
	// DateFormat and TimeFormat are Go layouts for generated heads.
	DateFormat string
	TimeFormat string
	// Locale renders month names in generated heads.
	Locale monday.Locale
	// Enrich, if set, is invoked for entries with a continuation
	// marker.
	Enrich EnrichFunc
}

// Sync materializes this command into a concrete Entry dated today.
// The transform is pure and repeatable: the resulting Entry syncs to
// itself.
func (c *Command) Sync(opts SyncOptions) *Entry {
	var res *Entry
	if c.Start == nil {
		begin := midnight(opts.Today)
		res = &Entry{
			Begin:     begin,
			Until:     begin.AddDate(0, 0, 1),
			Head:      monday.Format(begin, opts.DateFormat, opts.Locale) + ":",
			BodyLines: c.BodyLines,
			FullDay:   true,
		}
		if c.Continue {
			res.BodyLines = append(res.BodyLines, " +")
		}
	} else {
		begin := c.Start.At(opts.Today)
		head := monday.Format(begin, opts.DateFormat, opts.Locale) + ": " + begin.Format(opts.TimeFormat) + "-"
		var until time.Time
		if c.End != nil {
			until = c.End.At(opts.Today)
			head += until.Format(opts.TimeFormat)
		}
		res = &Entry{
			Begin:     begin,
			Until:     until,
			Head:      head,
			BodyLines: c.BodyLines,
			Tags:      c.Tags,
		}
		if c.Continue {
			res.BodyLines = append(res.BodyLines, " +")
		}
	}
	return res
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// logParser drives the three entry recognizers over a shared cursor.
type logParser struct {
	cursor *Cursor
	dates  *DateResolver
	lang   string
	errors []string
}

func (p *logParser) errorf(lineno int, format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: ", lineno+1)+fmt.Sprintf(format, args...))
}

// matchNamed returns the named groups of re matched against s, or nil.
func matchNamed(re *regexp.Regexp, s string) map[string]string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	res := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			res[name] = m[i]
		}
	}
	return res
}

// parseEntries recognizes log elements line by line, first recognizer
// wins, until an empty or unrecognized line.
func (p *logParser) parseEntries() []LogEntry {
	var res []LogEntry
	for {
		line := p.cursor.Peek()
		if line == nil || *line == "" {
			return res
		}
		switch {
		case reTimebase.MatchString(*line):
			if tb := p.parseTimebase(); tb != nil {
				res = append(res, tb)
			}
		case isEntryStart(*line):
			res = append(res, p.parseEntry())
		case reNewTime.MatchString(*line) || reNewDay.MatchString(*line):
			res = append(res, p.parseCommand())
		default:
			p.errorf(p.cursor.Lineno(), "log parse stops at unrecognised line %q", *line)
			return res
		}
	}
}

func (p *logParser) parseTimebase() *Timebase {
	m := matchNamed(reTimebase, *p.cursor.Peek())
	val := m["date"]
	if val == "" {
		val = m["year"]
	}
	line := *p.cursor.Next()
	dt, ok := p.dates.ParseDate(val, true)
	if !ok {
		return nil
	}
	return &Timebase{Line: line, DT: dt}
}

func (p *logParser) parseEntry() *Entry {
	lineno := p.cursor.Lineno()
	head := *p.cursor.Next()
	body := p.readBody()

	m := matchNamed(reEntry, head)
	date, ok := p.dates.ParseDate(m["date"], true)
	if !ok {
		p.errorf(lineno, "cannot parse log header date: '%s' (lang=%s)", m["date"], p.lang)
		date = p.dates.Default
	}

	e := &Entry{Head: head, BodyLines: body, Tags: p.parseTags(lineno, m["notes"])}
	if start := m["start"]; start != "" {
		st, err := parseTimeOfDay(start)
		if err != nil {
			p.errorf(lineno, "%v", err)
		}
		e.Begin = st.At(date)
		if end := m["end"]; end != "" {
			et, err := parseTimeOfDay(end)
			if err != nil {
				p.errorf(lineno, "%v", err)
			}
			e.Until = et.At(date)
			if e.Until.Before(e.Begin) {
				// Interval across midnight.
				e.Until = e.Until.AddDate(0, 0, 1)
			}
		}
	} else {
		e.Begin = midnight(date)
		e.Until = e.Begin.AddDate(0, 0, 1)
		e.FullDay = true
	}
	return e
}

func (p *logParser) parseCommand() *Command {
	lineno := p.cursor.Lineno()
	head := strings.TrimRight(*p.cursor.Next(), " \t")
	body := p.readBody()

	c := &Command{Head: head, BodyLines: body}
	if m := matchNamed(reNewTime, head); m != nil {
		if start := m["start"]; start != "" {
			if st, err := parseTimeOfDay(start); err == nil {
				c.Start = &st
			} else {
				p.errorf(lineno, "%v", err)
			}
		}
		if end := m["end"]; end != "" {
			if et, err := parseTimeOfDay(end); err == nil {
				c.End = &et
			} else {
				p.errorf(lineno, "%v", err)
			}
		}
		c.Tags = p.parseTags(lineno, m["notes"])
		c.Continue = m["cont"] != ""
	} else {
		c.Continue = head == "++"
	}
	return c
}

// readBody absorbs indented lines that do not start an entry of their
// own.
func (p *logParser) readBody() []string {
	var body []string
	for {
		line := p.cursor.Peek()
		if line == nil || *line == "" {
			return body
		}
		if (*line)[0] != ' ' && (*line)[0] != '\t' {
			return body
		}
		if isEntryStart(*line) {
			return body
		}
		body = append(body, *p.cursor.Next())
	}
}

// parseTags extracts +tags from the notes at the end of a head line,
// ignoring hour counts and bracketed project names.
func (p *logParser) parseTags(lineno int, notes string) []string {
	var tags []string
	for _, note := range strings.Fields(notes) {
		switch {
		case note[0] == '+':
			tags = append(tags, note[1:])
		case note[0] == '[':
			// Project name, not re-parsed.
		case note[0] >= '0' && note[0] <= '9':
			// Hour count, recomputed at print time.
		default:
			p.errorf(lineno, "unrecognised annotation %q", note)
		}
	}
	return tags
}

func isEntryStart(line string) bool {
	return reEntry.MatchString(line)
}

// IsLogStartLine reports whether a line looks like the start of a log
// section.
func IsLogStartLine(line string) bool {
	return reTimebase.MatchString(line) || isEntryStart(line)
}

// Log is the time-based section of a project file.
type Log struct {
	// Entries holds the parsed elements in file order.
	Entries []LogEntry

	lineno int
}

// Timed returns the concrete Entry elements of the log, in order.
func (l *Log) Timed() []*Entry {
	var res []*Entry
	for _, e := range l.Entries {
		if entry, ok := e.(*Entry); ok {
			res = append(res, entry)
		}
	}
	return res
}

// FirstEntry returns the first Entry of the log, nil if none.
func (l *Log) FirstEntry() *Entry {
	for _, e := range l.Entries {
		if entry, ok := e.(*Entry); ok {
			return entry
		}
	}
	return nil
}

// LastEntry returns the last Entry of the log, nil if none.
func (l *Log) LastEntry() *Entry {
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if entry, ok := l.Entries[i].(*Entry); ok {
			return entry
		}
	}
	return nil
}

// DetachEntries removes and returns the log slice between the first and
// last Entry whose begin date falls in [since, until). If removing the
// span leaves two consecutive Timebases, the first one goes too.
func (l *Log) DetachEntries(since, until time.Time) []LogEntry {
	first, last := -1, -1
	for idx, e := range l.Entries {
		entry, ok := e.(*Entry)
		if !ok {
			continue
		}
		d := midnight(entry.Begin)
		if !d.Before(since) && d.Before(until) {
			if first < 0 {
				first = idx
			}
			last = idx
		}
	}
	if first < 0 {
		return nil
	}

	res := make([]LogEntry, last+1-first)
	copy(res, l.Entries[first:last+1])
	l.Entries = append(l.Entries[:first], l.Entries[last+1:]...)
	if first > 0 && first < len(l.Entries) {
		_, prevTB := l.Entries[first-1].(*Timebase)
		_, curTB := l.Entries[first].(*Timebase)
		if prevTB && curTB {
			l.Entries = append(l.Entries[:first-1], l.Entries[first:]...)
		}
	}
	return res
}

// Durations computes per-tag durations in minutes; the "" key
// aggregates all entries.
func (l *Log) Durations(now time.Time) map[string]int {
	res := map[string]int{"": 0}
	for _, e := range l.Timed() {
		d := e.Duration(now)
		res[""] += d
		for _, tag := range e.Tags {
			res[tag] += d
		}
	}
	return res
}

// Sync resolves pending commands into concrete entries and runs
// activity enrichment on entries carrying a continuation marker.
// Resyncing an already-resolved entry is a no-op.
func (l *Log) Sync(opts SyncOptions) {
	for i, el := range l.Entries {
		switch e := el.(type) {
		case *Command:
			l.Entries[i] = syncEntryBody(e.Sync(opts), opts.Enrich)
		case *Entry:
			l.Entries[i] = syncEntryBody(e, opts.Enrich)
		}
	}
}

func syncEntryBody(e *Entry, enrich EnrichFunc) *Entry {
	if !e.hasContinuationMarker() {
		return e
	}
	e.BodyLines = e.BodyLines[:len(e.BodyLines)-1]
	if enrich != nil {
		enrich(e)
	}
	return e
}

// Parse consumes the log section, resolving dates through the given
// resolver, and returns one message per parse error.
func (l *Log) Parse(c *Cursor, dates *DateResolver, lang string) []string {
	l.lineno = c.Lineno()
	p := &logParser{cursor: c, dates: dates, lang: lang}
	l.Entries = append(l.Entries, p.parseEntries()...)
	return p.errors
}

// Print writes the log section. A bare-year line leads the output when
// the first element does not carry its own full reference, and another
// trails it when the last reference year differs from today's, so a
// reparse always recovers year context at both ends. Archived logs omit
// the trailing year. Returns true if anything was printed.
func (l *Log) Print(w io.Writer, today time.Time, archived bool) bool {
	var lastRef time.Time
	leadYear := 0
	for i, e := range l.Entries {
		if i == 0 {
			e.printLeadTimeref(w, today)
			if _, ok := e.(*Timebase); !ok {
				leadYear = today.Year()
				if entry, isEntry := e.(*Entry); isEntry {
					leadYear = entry.Begin.Year()
				}
			}
		}
		e.Print(w)
		if ref := e.ReferenceTime(); !ref.IsZero() {
			lastRef = ref
		}
	}
	if archived {
		return len(l.Entries) > 0
	}
	switch {
	case !lastRef.IsZero() && lastRef.Year() == today.Year():
	case lastRef.IsZero() && leadYear == today.Year():
	default:
		fmt.Fprintln(w, today.Year())
	}
	return true
}
