package models

import (
	"time"

	"github.com/contact-verifier/internal/types"
)

// CheckEvent is one row of the append-only resolution audit log.
// Events are written best-effort; a failed insert never fails a batch.
type CheckEvent struct {
	EventID   string            `json:"eventId"`
	OwnerID   string            `json:"ownerId"`
	Phone     string            `json:"phone"`
	Found     bool              `json:"found"`
	Error     string            `json:"error,omitempty"`
	Source    types.CheckSource `json:"source"`
	CheckedAt time.Time         `json:"checkedAt"`
}
