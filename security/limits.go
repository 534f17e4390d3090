package security

import (
	"errors"
	"fmt"
	"time"
)

var ErrLimitExceeded = errors.New("limit exceeded")

// Limits bounds what one client may ask the compose service to do.
// These limits keep a single request from exhausting memory, disk or workers.
type Limits struct {
	// Maximum uploaded PDF size (bytes). Default: 200 MB.
	MaxDocumentSize int64 `toml:"max_document_size"`

	// Maximum compose request body, payloads included (bytes). Default: 64 MB.
	MaxRequestSize int64 `toml:"max_request_size"`

	// Maximum decoded size of one image payload (bytes). Default: 20 MB.
	MaxPayloadSize int64 `toml:"max_payload_size"`

	// Maximum width x height of one decoded image payload. Default: 40 MP.
	MaxPayloadPixels int64 `toml:"max_payload_pixels"`

	// Maximum overlays per compose request. Default: 500.
	MaxOverlays int `toml:"max_overlays"`

	// Maximum entries in a page order. Default: 2,000.
	MaxPages int `toml:"max_pages"`

	// Maximum documents kept by the server. Default: 100.
	MaxDocuments int `toml:"max_documents"`

	// Maximum concurrently open connections. Default: 64.
	MaxConnections int `toml:"max_connections"`

	// Maximum time for one compose run. Default: 2m.
	ComposeTimeout time.Duration `toml:"compose_timeout"`
}

// DefaultLimits returns a Limits struct with safe default values.
func DefaultLimits() Limits {
	return Limits{
		MaxDocumentSize:  200 * 1024 * 1024, // 200 MB
		MaxRequestSize:   64 * 1024 * 1024,  // 64 MB
		MaxPayloadSize:   20 * 1024 * 1024,  // 20 MB
		MaxPayloadPixels: 40_000_000,
		MaxOverlays:      500,
		MaxPages:         2000,
		MaxDocuments:     100,
		MaxConnections:   64,
		ComposeTimeout:   2 * time.Minute,
	}
}

// CheckCompose validates the shape of a compose request.
func (l Limits) CheckCompose(overlays, pages int) error {
	if l.MaxOverlays > 0 && overlays > l.MaxOverlays {
		return fmt.Errorf("%w: %d overlays (max %d)", ErrLimitExceeded, overlays, l.MaxOverlays)
	}
	if l.MaxPages > 0 && pages > l.MaxPages {
		return fmt.Errorf("%w: %d pages (max %d)", ErrLimitExceeded, pages, l.MaxPages)
	}
	return nil
}

// CheckPayload validates the decoded size of an image payload.
func (l Limits) CheckPayload(n int) error {
	if l.MaxPayloadSize > 0 && int64(n) > l.MaxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes (max %d)", ErrLimitExceeded, n, l.MaxPayloadSize)
	}
	return nil
}

// CheckPixels validates the dimensions of an image payload before its
// pixels are decoded.
func (l Limits) CheckPixels(width, height int) error {
	if l.MaxPayloadPixels > 0 && int64(width)*int64(height) > l.MaxPayloadPixels {
		return fmt.Errorf("%w: %dx%d image (max %d pixels)", ErrLimitExceeded, width, height, l.MaxPayloadPixels)
	}
	return nil
}

// Validate rejects negative limits. Zero disables a count limit.
func (l Limits) Validate() error {
	for name, v := range map[string]int64{
		"max_document_size":  l.MaxDocumentSize,
		"max_request_size":   l.MaxRequestSize,
		"max_payload_size":   l.MaxPayloadSize,
		"max_payload_pixels": l.MaxPayloadPixels,
		"max_overlays":       int64(l.MaxOverlays),
		"max_pages":          int64(l.MaxPages),
		"max_documents":      int64(l.MaxDocuments),
		"max_connections":    int64(l.MaxConnections),
		"compose_timeout":    int64(l.ComposeTimeout),
	} {
		if v < 0 {
			return fmt.Errorf("security: %s must not be negative", name)
		}
	}
	return nil
}
