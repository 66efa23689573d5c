package document

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// Vocabulary holds the month and weekday names used to match dates in
// one language, all lowercased.
type Vocabulary struct {
	months   map[string]time.Month
	weekdays map[string]struct{}
}

// VocabularyCache builds and caches one Vocabulary per locale. The
// cache belongs to whoever owns the parsing session; it is not shared
// process-wide.
type VocabularyCache struct {
	byLocale map[monday.Locale]*Vocabulary
}

// NewVocabularyCache returns an empty cache.
func NewVocabularyCache() *VocabularyCache {
	return &VocabularyCache{byLocale: make(map[monday.Locale]*Vocabulary)}
}

// Get returns the vocabulary for a locale, building it on first use.
func (c *VocabularyCache) Get(locale monday.Locale) *Vocabulary {
	if v, ok := c.byLocale[locale]; ok {
		return v
	}
	v := buildVocabulary(locale)
	c.byLocale[locale] = v
	return v
}

func buildVocabulary(locale monday.Locale) *Vocabulary {
	v := &Vocabulary{
		months:   make(map[string]time.Month),
		weekdays: make(map[string]struct{}),
	}
	for m := time.January; m <= time.December; m++ {
		ref := time.Date(2000, m, 1, 0, 0, 0, 0, time.UTC)
		long := strings.ToLower(monday.Format(ref, "January", locale))
		short := strings.ToLower(monday.Format(ref, "Jan", locale))
		v.months[long] = m
		v.months[strings.TrimSuffix(short, ".")] = m
	}
	// 2000-01-03 was a Monday.
	for i := 0; i < 7; i++ {
		ref := time.Date(2000, 1, 3+i, 0, 0, 0, 0, time.UTC)
		long := strings.ToLower(monday.Format(ref, "Monday", locale))
		short := strings.ToLower(monday.Format(ref, "Mon", locale))
		v.weekdays[long] = struct{}{}
		v.weekdays[strings.TrimSuffix(short, ".")] = struct{}{}
	}
	return v
}

// localeFor maps a project language code to a monday locale. Unknown
// languages fall back to English.
func localeFor(lang string) monday.Locale {
	switch strings.ToLower(lang) {
	case "", "en", "en_us", "c":
		return monday.LocaleEnUS
	case "en_gb":
		return monday.LocaleEnGB
	case "it", "it_it":
		return monday.LocaleItIT
	case "de", "de_de":
		return monday.LocaleDeDE
	case "fr", "fr_fr":
		return monday.LocaleFrFR
	case "es", "es_es":
		return monday.LocaleEsES
	case "nl", "nl_nl":
		return monday.LocaleNlNL
	case "pt", "pt_pt":
		return monday.LocalePtPT
	case "ru", "ru_ru":
		return monday.LocaleRuRU
	case "sv", "sv_se":
		return monday.LocaleSvSE
	case "fi", "fi_fi":
		return monday.LocaleFiFI
	default:
		return monday.LocaleEnUS
	}
}

var (
	reBareYear = regexp.MustCompile(`^\d{4}$`)
	reISODate  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reDateSep  = regexp.MustCompile(`[\s,./]+`)
)

// DateResolver parses locale-sensitive, possibly partial dates. It
// keeps a running default date per parsing session: each successful
// parse resets the default to that date's midnight, so later partial
// dates inherit year (and month) context from earlier ones.
type DateResolver struct {
	locale monday.Locale
	vocab  *Vocabulary

	// Default supplies the missing components of partial dates. It
	// starts at January 1st of the reference year.
	Default time.Time
}

// NewDateResolver creates a resolver for the given language, with the
// default date initialized to Jan 1 of now's year.
func NewDateResolver(lang string, cache *VocabularyCache, now time.Time) *DateResolver {
	locale := localeFor(lang)
	return &DateResolver{
		locale:  locale,
		vocab:   cache.Get(locale),
		Default: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.Local),
	}
}

// Locale returns the monday locale the resolver matches names against.
func (r *DateResolver) Locale() monday.Locale { return r.locale }

// ParseDate parses a date string, filling missing components from the
// running default. Numeric day/month fields are day-first. When
// updateDefault is true and the parse succeeds, the default becomes the
// parsed date's midnight.
func (r *DateResolver) ParseDate(s string, updateDefault bool) (time.Time, bool) {
	d, ok := r.parse(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		return time.Time{}, false
	}
	if updateDefault {
		r.Default = d
	}
	return d, true
}

func (r *DateResolver) parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	if reBareYear.MatchString(s) {
		y, _ := strconv.Atoi(s)
		return time.Date(y, r.Default.Month(), r.Default.Day(), 0, 0, 0, 0, time.Local), true
	}

	if m := reISODate.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return makeDate(y, time.Month(mo), d)
	}

	var (
		day, year int
		month     time.Month
		nums      []int
	)
	for _, tok := range reDateSep.Split(s, -1) {
		if tok == "" {
			continue
		}
		tok = strings.TrimSuffix(tok, ".")
		if _, isWeekday := r.vocab.weekdays[tok]; isWeekday {
			continue
		}
		if m, isMonth := r.vocab.months[tok]; isMonth {
			if month != 0 {
				return time.Time{}, false
			}
			month = m
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return time.Time{}, false
		}
		nums = append(nums, n)
	}

	// Assign numbers day-first: a four-digit number is the year, then
	// the first remaining number is the day, the next the month.
	for _, n := range nums {
		switch {
		case n >= 1000:
			if year != 0 {
				return time.Time{}, false
			}
			year = n
		case day == 0:
			day = n
		case month == 0:
			month = time.Month(n)
		case year == 0 && n <= 99:
			year = 2000 + n
		default:
			return time.Time{}, false
		}
	}

	if day == 0 && month == 0 && year == 0 {
		return time.Time{}, false
	}
	if year == 0 {
		year = r.Default.Year()
	}
	if month == 0 {
		month = r.Default.Month()
	}
	if day == 0 {
		day = r.Default.Day()
	}
	return makeDate(year, month, day)
}

// makeDate builds a midnight date and rejects out-of-range components,
// which time.Date would otherwise normalize silently.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.Local)
	if d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
