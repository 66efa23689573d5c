// Package document implements the egret project-file grammar: an
// optional metadata header, a chronological log, and a free-form body,
// parsed into a typed model that renders back to text.
package document

import "strings"

// Cursor provides line-by-line access to a text source with one line of
// lookahead. Lines are pre-split and right-trimmed at construction; a
// nil return signals end of input.
type Cursor struct {
	// Name of the source being parsed, used in error messages.
	Name string

	lines  []string
	lineno int
}

// NewCursor splits text into right-trimmed lines. A trailing newline
// does not produce an extra empty line.
func NewCursor(name, text string) *Cursor {
	raw := strings.Split(text, "\n")
	if n := len(raw); n > 0 && raw[n-1] == "" {
		raw = raw[:n-1]
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return &Cursor{Name: name, lines: lines}
}

// Lineno returns the zero-based number of the next line to be parsed.
func (c *Cursor) Lineno() int { return c.lineno }

// Peek returns the next line without advancing, or nil at end of input.
func (c *Cursor) Peek() *string {
	if c.lineno < len(c.lines) {
		return &c.lines[c.lineno]
	}
	return nil
}

// Next returns the next line and advances, or nil at end of input.
func (c *Cursor) Next() *string {
	if c.lineno < len(c.lines) {
		res := &c.lines[c.lineno]
		c.lineno++
		return res
	}
	return nil
}

// Discard advances past the next line, if any.
func (c *Cursor) Discard() {
	if c.lineno < len(c.lines) {
		c.lineno++
	}
}

// SkipEmptyLines advances past consecutive empty lines.
func (c *Cursor) SkipEmptyLines() {
	for {
		line := c.Peek()
		if line == nil || *line != "" {
			return
		}
		c.Discard()
	}
}

// Rest returns all remaining lines, consuming them.
func (c *Cursor) Rest() []string {
	res := c.lines[c.lineno:]
	c.lineno = len(c.lines)
	return res
}
