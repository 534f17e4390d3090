package security

import (
	"errors"
	"testing"
)

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if err := l.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cases := []struct {
		name     string
		overlays int
		pages    int
		payload  int
		side     int
		wantErr  bool
	}{
		{"within", 10, 10, 1024, 6000, false},
		{"too many overlays", 501, 1, 0, 0, true},
		{"too many pages", 1, 2001, 0, 0, true},
		{"payload too large", 1, 1, 21 * 1024 * 1024, 0, true},
		{"payload too many pixels", 1, 1, 72, 8000, true},
	}
	for _, tc := range cases {
		err := l.CheckCompose(tc.overlays, tc.pages)
		if err == nil {
			err = l.CheckPayload(tc.payload)
		}
		if err == nil {
			err = l.CheckPixels(tc.side, tc.side)
		}
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrLimitExceeded) {
			t.Fatalf("%s: %v does not wrap ErrLimitExceeded", tc.name, err)
		}
	}
}

func TestZeroDisablesAndNegativeRejected(t *testing.T) {
	var l Limits
	if err := l.CheckCompose(1e6, 1e6); err != nil {
		t.Fatalf("zero limits must not restrict: %v", err)
	}
	if err := l.CheckPixels(1<<20, 1<<20); err != nil {
		t.Fatalf("zero pixel limit must not restrict: %v", err)
	}
	l.MaxOverlays = -1
	if err := l.Validate(); err == nil {
		t.Fatalf("negative limit accepted")
	}
}
