package document

import (
	"testing"
	"time"
)

func newResolver(lang string, year int) *DateResolver {
	now := time.Date(year, time.June, 15, 10, 0, 0, 0, time.Local)
	return NewDateResolver(lang, NewVocabularyCache(), now)
}

func TestParseDate_ISO(t *testing.T) {
	r := newResolver("en", 2019)
	d, ok := r.ParseDate("2019-02-01", true)
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2019, 2, 1, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_BareYear(t *testing.T) {
	r := newResolver("en", 2019)
	d, ok := r.ParseDate("2015", true)
	if !ok {
		t.Fatal("parse failed")
	}
	// Month and day come from the default date, Jan 1.
	want := time.Date(2015, 1, 1, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_MonthName(t *testing.T) {
	r := newResolver("en", 2019)
	d, ok := r.ParseDate("15 march", true)
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2019, 3, 15, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_DefaultPropagation(t *testing.T) {
	r := newResolver("en", 2019)
	if _, ok := r.ParseDate("2015", true); !ok {
		t.Fatal("year parse failed")
	}
	if _, ok := r.ParseDate("15 march", true); !ok {
		t.Fatal("first date parse failed")
	}
	// A bare day inherits year and month from the previous parse.
	d, ok := r.ParseDate("16", true)
	if !ok {
		t.Fatal("bare day parse failed")
	}
	want := time.Date(2015, 3, 16, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_NoDefaultUpdate(t *testing.T) {
	r := newResolver("en", 2019)
	if _, ok := r.ParseDate("2015-03-15", false); !ok {
		t.Fatal("parse failed")
	}
	if got := r.Default.Year(); got != 2019 {
		t.Errorf("default year = %d, want 2019", got)
	}
}

func TestParseDate_WeekdaySkipped(t *testing.T) {
	r := newResolver("en", 2019)
	d, ok := r.ParseDate("wed 15 march 2017", true)
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2017, 3, 15, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_NumericDayFirst(t *testing.T) {
	r := newResolver("en", 2019)
	d, ok := r.ParseDate("15/3/2017", true)
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2017, 3, 15, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_Localized(t *testing.T) {
	r := newResolver("it", 2019)
	d, ok := r.ParseDate("15 marzo", true)
	if !ok {
		t.Fatal("parse failed")
	}
	want := time.Date(2019, 3, 15, 0, 0, 0, 0, time.Local)
	if !d.Equal(want) {
		t.Errorf("date = %v, want %v", d, want)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	r := newResolver("en", 2019)
	for _, s := range []string{"", "notadate", "32 march", "2019-02-31"} {
		if _, ok := r.ParseDate(s, true); ok {
			t.Errorf("ParseDate(%q) succeeded, want failure", s)
		}
	}
	// Failed parses must not move the default.
	if got := r.Default; !got.Equal(time.Date(2019, 1, 1, 0, 0, 0, 0, time.Local)) {
		t.Errorf("default moved to %v", got)
	}
}

func TestVocabularyCache_Reuse(t *testing.T) {
	c := NewVocabularyCache()
	a := c.Get(localeFor("en"))
	b := c.Get(localeFor("en"))
	if a != b {
		t.Error("expected cached vocabulary to be reused")
	}
	if c.Get(localeFor("it")) == a {
		t.Error("expected distinct vocabulary per locale")
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(180); got != "3h" {
		t.Errorf("FormatDuration(180) = %q, want %q", got, "3h")
	}
	if got := FormatDuration(195); got != "3h 15m" {
		t.Errorf("FormatDuration(195) = %q, want %q", got, "3h 15m")
	}
}
