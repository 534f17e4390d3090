package overlay

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDateFormat is used when a date overlay is created without a format.
const DefaultDateFormat = "MM/DD/YYYY"

// DateStamp is the reformattable payload of a date overlay. Value is a
// calendar date (YYYY-MM-DD); the rendered text lives in TextStyle.Content.
type DateStamp struct {
	Value  string `json:"value"`
	Format string `json:"format"`
}

// dateTokens is ordered longest first so "MMMM" wins over "MM".
var dateTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"DD", "02"},
	{"D", "2"},
}

// FormatDate renders t with a token format such as "DD.MM.YYYY" or
// "MMMM D, YYYY". Characters that are not tokens are copied literally.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		format = DefaultDateFormat
	}
	var b strings.Builder
	for i := 0; i < len(format); {
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(format[i:], tok.token) {
				b.WriteString(t.Format(tok.layout))
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// ParseDateValue parses the stored calendar date.
func ParseDateValue(v string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("date value %q: %w", v, err)
	}
	return t, nil
}

// Reformat changes the format of a date overlay and re-renders its text.
func (o *Overlay) Reformat(format string) error {
	if o.Kind != KindDate || o.Date == nil || o.Text == nil {
		return fmt.Errorf("%w: reformat needs a date overlay", ErrMissingPayload)
	}
	t, err := ParseDateValue(o.Date.Value)
	if err != nil {
		return err
	}
	o.Date.Format = format
	o.Text.Content = FormatDate(t, format)
	return nil
}

// SetDate stores a new date and re-renders the text with the current format.
func (o *Overlay) SetDate(t time.Time) error {
	if o.Kind != KindDate || o.Date == nil || o.Text == nil {
		return fmt.Errorf("%w: set date needs a date overlay", ErrMissingPayload)
	}
	o.Date.Value = t.Format(time.DateOnly)
	o.Text.Content = FormatDate(t, o.Date.Format)
	return nil
}
