package domain

import (
	"time"

	"github.com/farmaline-dev/farmaline/pkg/idx"
)

// Alert rules evaluated by the monitor over the trailing window.
const (
	AlertRuleIdentityFailures = "failed_logins_identity"
	AlertRuleIPFailures       = "failed_logins_ip"
	AlertRuleIPSpread         = "ip_identity_spread"
	AlertRuleAuditBurst       = "audit_burst"
)

// Alert severities, lowest to highest.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityAlert is an advisory finding derived from the attempt and audit
// ledgers. Alerts inform operators; nothing on the request path reads them.
type SecurityAlert struct {
	ID         idx.ID
	Rule       string
	IdentityID *int64 // nil for IP-scoped rules
	IP         string // empty for identity-scoped rules
	Severity   string
	Detail     string
	CreatedAt  time.Time
}
