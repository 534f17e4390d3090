// Package fonts measures overlay text and maps overlay font styling onto the
// PDF core fonts the engine can stamp without embedding.
package fonts

import "strings"

// Style is the font selection of a text overlay.
type Style struct {
	Family string
	Bold   bool
	Italic bool
}

// Monospace reports whether the family asks for a fixed-pitch face.
func (s Style) Monospace() bool {
	f := strings.ToLower(s.Family)
	return strings.Contains(f, "courier") || strings.Contains(f, "mono")
}

func (s Style) serif() bool {
	f := strings.ToLower(s.Family)
	return strings.Contains(f, "times") || (strings.Contains(f, "serif") && !strings.Contains(f, "sans"))
}

// CoreFont returns the standard 14 font name closest to s. Unknown families
// fall back to Helvetica.
func CoreFont(s Style) string {
	switch {
	case s.Monospace():
		return "Courier" + variant(s, "Bold", "Oblique", "BoldOblique")
	case s.serif():
		if !s.Bold && !s.Italic {
			return "Times-Roman"
		}
		return "Times" + variant(s, "Bold", "Italic", "BoldItalic")
	}
	return "Helvetica" + variant(s, "Bold", "Oblique", "BoldOblique")
}

func variant(s Style, bold, italic, both string) string {
	switch {
	case s.Bold && s.Italic:
		return "-" + both
	case s.Bold:
		return "-" + bold
	case s.Italic:
		return "-" + italic
	}
	return ""
}
