package domain

import (
	"time"

	"github.com/farmaline-dev/farmaline/pkg/idx"
)

// Attempt outcome reasons recorded on the ledger. These are operator-facing;
// the caller only ever sees the generic error taxonomy.
const (
	AttemptReasonUnknownIdentifier = "unknown_identifier"
	AttemptReasonBadPassword       = "bad_password"
	AttemptReasonLockedOut         = "locked_out"
	AttemptReasonMissingOTP        = "otp_missing"
	AttemptReasonBadOTP            = "otp_invalid"
	AttemptReasonSuccess           = "ok"
)

// LoginAttempt is one row of the append-only attempt ledger. IdentityID is nil
// when the submitted identifier matched nobody; the identifier itself is still
// kept so per-IP spray patterns remain visible to the alert monitor.
type LoginAttempt struct {
	ID         idx.ID
	IdentityID *int64
	Identifier string
	Success    bool
	Reason     string
	IP         string
	CreatedAt  time.Time
}
