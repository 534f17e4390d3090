// Package overlay defines the annotation record shared by the editing session
// and the compositor.
package overlay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wudi/pdfoverlay/coords"
)

// Kind tags the overlay variant.
type Kind string

const (
	KindText      Kind = "text"
	KindDate      Kind = "date"
	KindImage     Kind = "image"
	KindSignature Kind = "signature"
	KindRectangle Kind = "rectangle"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindDate, KindImage, KindSignature, KindRectangle:
		return true
	}
	return false
}

// TextLike reports whether the kind carries a TextStyle.
func (k Kind) TextLike() bool { return k == KindText || k == KindDate }

// ImageLike reports whether the kind carries an ImagePayload.
func (k Kind) ImageLike() bool { return k == KindImage || k == KindSignature }

// Size is the canvas-pixel extent of an overlay.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Overlay is one annotation placed on a page. Position and Size are canvas
// pixels and only meaningful together with ReferenceCanvasSize.
type Overlay struct {
	ID                  string       `json:"id,omitempty"`
	Kind                Kind         `json:"kind"`
	PageIndex           int          `json:"pageIndex"`
	Position            coords.Point `json:"position"`
	Size                *Size        `json:"size,omitempty"`
	ReferenceCanvasSize coords.Size  `json:"referenceCanvasSize"`
	// Rotation is clockwise degrees, kept unnormalized to preserve the turn
	// direction; renderers normalize.
	Rotation    float64  `json:"rotation"`
	Opacity     int      `json:"opacity"`
	AspectRatio *float64 `json:"aspectRatio,omitempty"`

	Text  *TextStyle    `json:"text,omitempty"`
	Date  *DateStamp    `json:"date,omitempty"`
	Image *ImagePayload `json:"image,omitempty"`
	Rect  *RectStyle    `json:"rect,omitempty"`

	// Preview caches a processed preview image for the UI. It is never part of
	// a snapshot or an export.
	Preview []byte `json:"-"`
}

// TextStyle is the payload of text and date overlays. FontSize is canvas px.
type TextStyle struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Color      string  `json:"color,omitempty"`
	Highlight  string  `json:"highlight,omitempty"`
	Align      string  `json:"align,omitempty"`
}

// ImagePayload is the payload of image and signature overlays. On the wire
// the bytes travel as a base64 data URL in Src; Data holds the decoded bytes.
type ImagePayload struct {
	Src              string `json:"src,omitempty"`
	Data             []byte `json:"-"`
	MIME             string `json:"mime,omitempty"`
	RemoveBackground bool   `json:"removeBackground,omitempty"`
}

// RectStyle is the payload of rectangle overlays.
type RectStyle struct {
	FillColor  string  `json:"fillColor"`
	Alpha      float64 `json:"alpha"`
	BorderFade float64 `json:"borderFade,omitempty"`
}

const DefaultFontSize = 16

var (
	ErrUnknownKind    = errors.New("unknown overlay kind")
	ErrMissingPayload = errors.New("missing overlay payload")
)

// New returns an overlay of the given kind with a fresh ID, full opacity and
// an empty payload of the right variant.
func New(kind Kind) Overlay {
	o := Overlay{ID: uuid.NewString(), Kind: kind, Opacity: 100}
	switch {
	case kind.TextLike():
		o.Text = &TextStyle{FontSize: DefaultFontSize, Color: "#000000", FontFamily: "Helvetica"}
		if kind == KindDate {
			o.Date = &DateStamp{Format: DefaultDateFormat}
		}
	case kind.ImageLike():
		o.Image = &ImagePayload{RemoveBackground: kind == KindSignature}
	case kind == KindRectangle:
		o.Rect = &RectStyle{FillColor: "#ffff00", Alpha: 0.4}
	}
	return o
}

// UnmarshalJSON defaults Opacity to 100 when the field is absent.
func (o *Overlay) UnmarshalJSON(data []byte) error {
	type plain Overlay
	p := plain{Opacity: 100}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Overlay(p)
	return nil
}

// Clone returns a deep copy that shares no memory with o. Transient UI fields
// are dropped.
func (o Overlay) Clone() Overlay {
	c := o
	c.Preview = nil
	if o.Size != nil {
		s := *o.Size
		c.Size = &s
	}
	if o.AspectRatio != nil {
		a := *o.AspectRatio
		c.AspectRatio = &a
	}
	if o.Text != nil {
		t := *o.Text
		c.Text = &t
	}
	if o.Date != nil {
		d := *o.Date
		c.Date = &d
	}
	if o.Image != nil {
		img := *o.Image
		if o.Image.Data != nil {
			img.Data = append([]byte(nil), o.Image.Data...)
		}
		c.Image = &img
	}
	if o.Rect != nil {
		r := *o.Rect
		c.Rect = &r
	}
	return c
}

// CloneAll deep-copies a list.
func CloneAll(list []Overlay) []Overlay {
	if list == nil {
		return nil
	}
	out := make([]Overlay, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

// Validate checks the invariants the compositor relies on. Page range is
// checked later against the actual document.
func (o Overlay) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, o.Kind)
	}
	if o.PageIndex < 0 {
		return fmt.Errorf("negative page index %d", o.PageIndex)
	}
	if o.Opacity < 0 || o.Opacity > 100 {
		return fmt.Errorf("opacity %d outside 0..100", o.Opacity)
	}
	if !o.ReferenceCanvasSize.Valid() {
		return fmt.Errorf("%w: reference canvas size %v", coords.ErrInvalidGeometry, o.ReferenceCanvasSize)
	}
	switch {
	case o.Kind.TextLike():
		if o.Text == nil {
			return fmt.Errorf("%w: %s overlay without text", ErrMissingPayload, o.Kind)
		}
		if o.Kind == KindDate && o.Date == nil {
			return fmt.Errorf("%w: date overlay without date", ErrMissingPayload)
		}
	case o.Kind.ImageLike():
		if o.Image == nil || (o.Image.Src == "" && len(o.Image.Data) == 0) {
			return fmt.Errorf("%w: %s overlay without image data", ErrMissingPayload, o.Kind)
		}
		if o.Size == nil {
			return fmt.Errorf("%w: %s overlay without size", coords.ErrInvalidGeometry, o.Kind)
		}
	case o.Kind == KindRectangle:
		if o.Rect == nil {
			return fmt.Errorf("%w: rectangle overlay without style", ErrMissingPayload)
		}
		if o.Size == nil {
			return fmt.Errorf("%w: rectangle overlay without size", coords.ErrInvalidGeometry)
		}
	}
	return nil
}

// OpacityFraction returns Opacity as 0..1, clamped.
func (o Overlay) OpacityFraction() float64 {
	switch {
	case o.Opacity <= 0:
		return 0
	case o.Opacity >= 100:
		return 1
	}
	return float64(o.Opacity) / 100
}

func (o Overlay) String() string {
	return fmt.Sprintf("%s@page%d", o.Kind, o.PageIndex)
}
