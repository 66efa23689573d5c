package document

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

var (
	reTask       = regexp.MustCompile(`^(?P<indent>\s*)t(?P<id>\d*)\s+(?P<text>.+)$`)
	reBulletLine = regexp.MustCompile(`^(?P<indent>[ \t]*)(?P<bullet>[-*][ \t]*)(?P<text>.*)$`)
	reBodyLine   = regexp.MustCompile(`^(?P<indent>[ \t]*)(?P<text>.*)$`)
	reAttribute  = regexp.MustCompile(`^(?P<key>[^:]+):(?P<val>[^:]+)$`)
)

// taskAttributes are the key:value tokens recognized in task
// placeholder text; anything else stays in the description.
var taskAttributes = map[string]struct{}{
	"start": {}, "due": {}, "until": {}, "wait": {}, "scheduled": {}, "priority": {},
}

// Annotated is one body line with its computed indentation level and
// list marker.
type Annotated struct {
	// Level is the indentation level, counting a space as 1 and a tab
	// as 8. For empty lines it is the level of the enclosing block.
	Level int
	// Marker is '-' or '*' for bullet lines, ' ' for empty lines, 0
	// otherwise.
	Marker byte
	// Line is the verbatim source line.
	Line string
}

// AnnotateIndentAndMarkers computes indentation levels and bullet
// markers for body lines. A run of empty lines takes the indentation
// of the line before it when the following line keeps at least that
// level, else 0.
func AnnotateIndentAndMarkers(lines []string) []Annotated {
	var res []Annotated
	lastIndent := 0
	var pendingEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			pendingEmpty = append(pendingEmpty, l)
			continue
		}
		lev, mlev := 0, 0
		var marker byte
	scan:
		for i := 0; i < len(l); i++ {
			switch c := l[i]; {
			case c == ' ':
				lev++
			case c == '\t':
				lev += 8
			case marker == 0 && (c == '*' || c == '-'):
				marker = c
				mlev = lev
				lev++
			default:
				break scan
			}
		}
		if len(pendingEmpty) > 0 {
			if marker == 0 {
				mlev = lev
			}
			emptyLev := 0
			if mlev >= lastIndent {
				emptyLev = lastIndent
			}
			for _, e := range pendingEmpty {
				res = append(res, Annotated{Level: emptyLev, Marker: ' ', Line: e})
			}
			pendingEmpty = nil
		}
		lastIndent = lev
		res = append(res, Annotated{Level: lev, Marker: marker, Line: l})
	}
	for _, e := range pendingEmpty {
		res = append(res, Annotated{Marker: ' ', Line: e})
	}
	return res
}

// BodyEntry is one element of the body section. The set of
// implementations is closed: Line, EmptyLine, BulletListLine and
// TaskPlaceholder.
type BodyEntry interface {
	// Content returns the entry text without indentation. Entries that
	// should not be rendered return "".
	Content() string
	// Print writes the entry in file format.
	Print(w io.Writer)
}

// Line is a plain body text line.
type Line struct {
	Indent string
	Text   string
}

func (l *Line) Content() string { return l.Text }

func (l *Line) Print(w io.Writer) { fmt.Fprintln(w, l.Indent+l.Text) }

// EmptyLine is one empty body line.
type EmptyLine struct{}

func (l *EmptyLine) Content() string { return "" }

func (l *EmptyLine) Print(w io.Writer) { fmt.Fprintln(w) }

// BulletListLine is a body line introduced by a "-" or "*" marker.
type BulletListLine struct {
	Indent string
	// Bullet is the marker plus the whitespace that follows it.
	Bullet string
	Text   string
}

func (l *BulletListLine) Content() string { return l.Bullet + l.Text }

func (l *BulletListLine) Print(w io.Writer) { fmt.Fprintln(w, l.Indent+l.Bullet+l.Text) }

// TaskPlaceholder is a body line referencing a record in the external
// task store, by local id or pending creation.
type TaskPlaceholder struct {
	body *Body

	Indent string
	// ID is the store-local numeric id; meaningful only when HasID.
	ID    int
	HasID bool
	// IsNew marks placeholders that still have to be created in the
	// store.
	IsNew bool

	Description string
	Tags        map[string]struct{}
	// Attributes holds recognized key:value tokens from the source
	// text, consumed at creation time and not rendered back.
	Attributes map[string]string
	// DependsOn lists local ids of prerequisite tasks.
	DependsOn []int

	// UUID is the store identifier once the placeholder is resolved.
	UUID string

	// Resolved is set once the placeholder has been matched to a store
	// record; Status, Modified and ZeroID mirror that record.
	Resolved bool
	Status   string
	Modified time.Time
	// ZeroID marks records the store reports as terminally absorbed.
	ZeroID bool

	// IsOrphan marks placeholders that could not be matched to any
	// store record.
	IsOrphan bool
}

func (t *TaskPlaceholder) Content() string {
	var res []string
	switch {
	case t.IsOrphan:
		res = append(res, "- [orphan]")
	case t.Resolved && t.ZeroID:
		res = append(res, "-")
	case !t.HasID:
		res = append(res, "t")
	default:
		res = append(res, "t"+strconv.Itoa(t.ID))
	}
	if t.Resolved {
		if t.Status == "completed" {
			return ""
		}
		res = append(res, fmt.Sprintf("[%s %s]", t.Modified.Format("2006-01-02 15:04"), t.Status))
	}
	res = append(res, t.Description)
	hidden := map[string]struct{}{}
	if t.body != nil {
		hidden = t.body.Tags
	}
	tags := make([]string, 0, len(t.Tags))
	for tag := range t.Tags {
		if _, ok := hidden[tag]; !ok {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	for _, tag := range tags {
		res = append(res, "+"+tag)
	}
	if len(t.DependsOn) > 0 {
		deps := append([]int(nil), t.DependsOn...)
		sort.Ints(deps)
		strs := make([]string, len(deps))
		for i, d := range deps {
			strs[i] = strconv.Itoa(d)
		}
		res = append(res, "depends:"+strings.Join(strs, ","))
	}
	return strings.Join(res, " ")
}

func (t *TaskPlaceholder) Print(w io.Writer) {
	if content := t.Content(); content != "" {
		fmt.Fprintln(w, t.Indent+content)
	}
}

// parseText fills description, tags and attributes from the free text
// after the placeholder id. Tokens are shell-words; unrecognized ones
// are rejoined, quoted, into the description in their original order.
func (t *TaskPlaceholder) parseText(text string) {
	words, err := shellquote.Split(text)
	if err != nil {
		words = strings.Fields(text)
	}
	var desc []string
	for _, word := range words {
		if strings.HasPrefix(word, "+") {
			t.Tags[word[1:]] = struct{}{}
			continue
		}
		if m := matchNamed(reAttribute, word); m != nil {
			if _, ok := taskAttributes[m["key"]]; ok {
				t.Attributes[m["key"]] = m["val"]
				continue
			}
		}
		desc = append(desc, word)
	}
	t.Description = shellquote.Join(desc...)
}

// Body is the free-form section of a project file, everything after
// the metadata and the log. Parsing it never fails: unrecognized
// structure is representable as plain lines.
type Body struct {
	// Tags are the project default tags, hidden when rendering task
	// placeholders.
	Tags map[string]struct{}

	// Content holds the body elements in file order.
	Content []BodyEntry
	// Tasks indexes the TaskPlaceholder elements of Content.
	Tasks []*TaskPlaceholder

	lineno int
}

// NewBody returns an empty body.
func NewBody() *Body {
	return &Body{Tags: make(map[string]struct{})}
}

// newTask creates a placeholder from a matched task line and registers
// it.
func (b *Body) newTask(indent, id, text string) *TaskPlaceholder {
	t := &TaskPlaceholder{
		body:       b,
		Indent:     indent,
		Tags:       make(map[string]struct{}),
		Attributes: make(map[string]string),
	}
	if id == "" {
		t.IsNew = true
	} else if n, err := strconv.Atoi(id); err == nil {
		t.ID = n
		t.HasID = true
	} else {
		t.IsNew = true
	}
	t.parseText(text)
	b.Tasks = append(b.Tasks, t)
	return t
}

// Parse consumes the rest of the input as body content.
func (b *Body) Parse(c *Cursor) {
	b.lineno = c.Lineno()
	for _, a := range AnnotateIndentAndMarkers(c.Rest()) {
		switch {
		case a.Marker == ' ':
			b.Content = append(b.Content, &EmptyLine{})
		case a.Marker == '-' || a.Marker == '*':
			m := matchNamed(reBulletLine, a.Line)
			b.Content = append(b.Content, &BulletListLine{Indent: m["indent"], Bullet: m["bullet"], Text: m["text"]})
		default:
			if m := matchNamed(reTask, a.Line); m != nil {
				b.Content = append(b.Content, b.newTask(m["indent"], m["id"], m["text"]))
				continue
			}
			m := matchNamed(reBodyLine, a.Line)
			b.Content = append(b.Content, &Line{Indent: m["indent"], Text: m["text"]})
		}
	}
}

// Prepend inserts entries at the top of the body, keeping Tasks in
// sync.
func (b *Body) Prepend(entries []BodyEntry) {
	var tasks []*TaskPlaceholder
	for _, e := range entries {
		if t, ok := e.(*TaskPlaceholder); ok {
			t.body = b
			tasks = append(tasks, t)
		}
	}
	b.Content = append(entries, b.Content...)
	b.Tasks = append(tasks, b.Tasks...)
}

// Print writes the body section. Returns true if anything was printed.
func (b *Body) Print(w io.Writer) bool {
	res := false
	for _, e := range b.Content {
		e.Print(w)
		res = true
	}
	return res
}
