// Package hookbridge serves the HTTP intake that turns forge push
// notifications into pipeline runs.
package hookbridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/slipway/internal/trigger"
)

const (
	// ProtocolVersion identifies the intake contract exposed via /health.
	ProtocolVersion = "1.0.0"
	// HookSchemaVersion is the currently supported inbound hook version.
	HookSchemaVersion = 1
)

// Hook is a single push notification delivered by the forge. The ref may be
// fully qualified (refs/tags/v1.2.3) or bare; TagMessage carries the
// annotated tag message on tag pushes so the publisher can extract release
// notes without a checkout.
type Hook struct {
	Version    int       `json:"version"`
	DeliveryID string    `json:"delivery_id"`
	Event      string    `json:"event"`
	Ref        string    `json:"ref"`
	TagMessage string    `json:"tag_message,omitempty"`
	Commit     string    `json:"commit"`
	SentAt     time.Time `json:"sent_at,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation.
func (h *Hook) Normalize() {
	if h == nil {
		return
	}
	if h.Version == 0 {
		h.Version = HookSchemaVersion
	}
	h.DeliveryID = strings.TrimSpace(h.DeliveryID)
	h.Event = strings.TrimSpace(h.Event)
	h.Ref = strings.TrimSpace(h.Ref)
	h.Commit = strings.TrimSpace(h.Commit)
}

// Validate enforces baseline schema requirements for incoming hooks.
func (h Hook) Validate() error {
	if h.Version != HookSchemaVersion {
		return fmt.Errorf("version %d not supported", h.Version)
	}
	if h.DeliveryID == "" {
		return errors.New("delivery_id is required")
	}
	if h.Ref == "" {
		return errors.New("ref is required")
	}
	if h.Commit == "" {
		return errors.New("commit is required")
	}
	return nil
}

// Trigger converts the hook into a validated trigger context.
func (h Hook) Trigger() (trigger.Context, error) {
	return trigger.New(trigger.EventKind(h.Event), h.Ref, h.TagMessage, h.Commit)
}

// Processor consumes validated hooks, typically by starting a pipeline run.
type Processor interface {
	HandleHook(Hook) error
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(Hook) error

// HandleHook executes f(h).
func (f ProcessorFunc) HandleHook(h Hook) error {
	if f == nil {
		return nil
	}
	return f(h)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type hookResponse struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id"`
}
