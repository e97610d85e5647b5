package locale

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultDateLayout is dd/MM/yyyy.
const DefaultDateLayout = "02/01/2006"

// Locale carries the user-facing formatting rules of the running system:
// the language used to pick concept names and the layout used to print and
// parse dates.
type Locale struct {
	Tag        language.Tag
	DateLayout string
}

// Default is the locale used when none is configured (en_GB, dd/MM/yyyy).
var Default = Locale{Tag: language.BritishEnglish, DateLayout: DefaultDateLayout}

// New parses a locale tag such as "en_GB" or "fr-FR". An empty layout falls
// back to DefaultDateLayout.
func New(tag, dateLayout string) (Locale, error) {
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return Locale{Tag: t, DateLayout: dateLayout}, nil
}

// FormatDate renders t with the locale date layout.
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.layout())
}

// ParseDate parses s with the locale date layout, in local time.
func (l Locale) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(l.layout(), strings.TrimSpace(s), time.Local)
}

func (l Locale) layout() string {
	if l.DateLayout == "" {
		return DefaultDateLayout
	}
	return l.DateLayout
}

// FormatDouble renders v the way clinical values are stored as text: whole
// numbers keep a trailing ".0" (70 -> "70.0"), magnitudes outside
// [1e-3, 1e7) use an exponent ("1.0E7").
func FormatDouble(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	if math.IsInf(v, -1) {
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-")
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}
