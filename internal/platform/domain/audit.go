package domain

import (
	"time"

	"github.com/farmaline-dev/farmaline/pkg/idx"
)

// AuditRecord attributes one completed state-changing request to an identity,
// source IP and outcome. Rows are immutable once written.
type AuditRecord struct {
	ID          idx.ID
	IdentityID  *int64
	Name        string
	Email       string
	Role        string
	Action      string // caller override or "METHOD /path"
	Description string
	IP          string
	CreatedAt   time.Time
}

// AuditQuery filters the audit ledger for the reporting endpoints.
type AuditQuery struct {
	IdentityID *int64
	From       time.Time
	To         time.Time
	Limit      int
}
