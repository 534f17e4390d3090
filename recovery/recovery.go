// Package recovery decides what the compositor does when one overlay cannot
// be placed as described.
package recovery

import "fmt"

type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Stage is the compose step that produced the error.
type Stage int

const (
	// StagePageRange: the overlay targets a page the document does not have.
	StagePageRange Stage = iota
	// StageGeometry: the transformed rectangle is degenerate.
	StageGeometry
	// StagePayload: the image payload could not be decoded or materialized.
	StagePayload
)

func (s Stage) String() string {
	switch s {
	case StagePageRange:
		return "page-range"
	case StageGeometry:
		return "geometry"
	case StagePayload:
		return "payload"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type Location struct {
	OverlayIndex int
	Kind         string
	Page         int
	Stage        Stage
}

func (l Location) String() string {
	return fmt.Sprintf("overlay %d (%s) page %d %s", l.OverlayIndex, l.Kind, l.Page, l.Stage)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	return [...]string{"fail", "skip", "fix", "warn"}[a]
}

type Context interface{ Done() <-chan struct{} }
