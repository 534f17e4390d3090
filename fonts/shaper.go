package fonts

import (
	"bytes"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Metrics describes a block of text in the unit of the size it was measured
// at. Height covers every line including the gap between them.
type Metrics struct {
	Width   float64
	Ascent  float64
	Descent float64
	Lines   int
	Height  float64
}

// LineHeight is the distance between two baselines.
func (m Metrics) LineHeight() float64 {
	if m.Lines == 0 {
		return 0
	}
	return m.Height / float64(m.Lines)
}

type faceKey struct {
	mono, bold, italic bool
}

var (
	facesMu sync.Mutex
	faces   = map[faceKey]*gofont.Face{}
)

var faceData = map[faceKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

func faceFor(style Style) (*gofont.Face, error) {
	key := faceKey{mono: style.Monospace(), bold: style.Bold, italic: style.Italic}
	facesMu.Lock()
	defer facesMu.Unlock()
	if f, ok := faces[key]; ok {
		return f, nil
	}
	f, err := gofont.ParseTTF(bytes.NewReader(faceData[key]))
	if err != nil {
		return nil, err
	}
	faces[key] = f
	return f, nil
}

// Measure shapes text at size and returns its extent. Lines are split on
// '\n'; the widest line sets Width.
func Measure(text string, style Style, size float64) (Metrics, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return Metrics{}, nil
	}
	face, err := faceFor(style)
	if err != nil {
		return Metrics{}, err
	}

	shaper := &shaping.HarfbuzzShaper{}
	fsize := fixed.Int26_6(math.Round(size * 64))

	var m Metrics
	var lineHeight float64
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		script := detectScript(runes)
		out := shaper.Shape(shaping.Input{
			Text:      runes,
			RunStart:  0,
			RunEnd:    len(runes),
			Direction: scriptDirection(script),
			Face:      face,
			Size:      fsize,
			Script:    script,
			Language:  language.DefaultLanguage(),
		})
		if w := fromFixed(out.Advance); w > m.Width {
			m.Width = w
		}
		asc := fromFixed(out.LineBounds.Ascent)
		desc := -fromFixed(out.LineBounds.Descent)
		if asc > m.Ascent {
			m.Ascent = asc
		}
		if desc > m.Descent {
			m.Descent = desc
		}
		if h := asc + desc + fromFixed(out.LineBounds.Gap); h > lineHeight {
			lineHeight = h
		}
		m.Lines++
	}
	m.Height = lineHeight * float64(m.Lines)
	return m, nil
}

func fromFixed(v fixed.Int26_6) float64 {
	return math.Abs(float64(v) / 64)
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	}
	return language.Unknown
}
