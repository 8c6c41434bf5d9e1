package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
)

// AlertConfig tunes the monitor's detection rules. Zero values fall back to
// the defaults below.
type AlertConfig struct {
	Interval time.Duration // how often the monitor scans the ledgers
	Window   time.Duration // how far back each scan looks

	IdentityFailureThreshold int // failed logins per identity within the window
	IPFailureThreshold       int // failed logins per source IP within the window
	IPSpreadThreshold        int // distinct identifiers one IP has tried
	AuditBurstThreshold      int // audit records per identity within the window
}

func (c AlertConfig) withDefaults() AlertConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.IdentityFailureThreshold <= 0 {
		c.IdentityFailureThreshold = 5
	}
	if c.IPFailureThreshold <= 0 {
		c.IPFailureThreshold = 15
	}
	if c.IPSpreadThreshold <= 0 {
		c.IPSpreadThreshold = 5
	}
	if c.AuditBurstThreshold <= 0 {
		c.AuditBurstThreshold = 50
	}
	return c
}

// AlertService periodically scans the attempt and audit ledgers for
// suspicious patterns and records a security alert per finding. Each rule
// dedupes against alerts already raised for the same subject within the
// window, so a sustained attack raises one alert per window, not one per scan.
type AlertService struct {
	Store  store.Store
	Logger *slog.Logger
	Config AlertConfig

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewAlertService(st store.Store, logger *slog.Logger, cfg AlertConfig) *AlertService {
	return &AlertService{
		Store:  st,
		Logger: logger,
		Config: cfg.withDefaults(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background scan loop. Non-blocking; call Stop to shut it
// down.
func (s *AlertService) Start() {
	go s.run()
	s.Logger.Info("alert monitor started", "interval", s.Config.Interval, "window", s.Config.Window)
}

// Stop shuts down the scan loop and waits for an in-progress scan to finish.
func (s *AlertService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("alert monitor stopped")
}

func (s *AlertService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	// Scan immediately on startup so a restart doesn't blind the monitor
	// for a full interval.
	s.scan()

	for {
		select {
		case <-ticker.C:
			s.scan()
		case <-s.stopCh:
			return
		}
	}
}

func (s *AlertService) scan() {
	if err := s.ScanOnce(context.Background()); err != nil {
		s.Logger.Error("alert scan failed", "error", err)
	}
}

// ScanOnce runs all detection rules against the current ledger state. Each
// rule is independent; one failing does not stop the others.
func (s *AlertService) ScanOnce(ctx context.Context) error {
	since := time.Now().UTC().Add(-s.Config.Window)

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(s.scanIdentityFailures(ctx, since))
	keep(s.scanIPFailures(ctx, since))
	keep(s.scanAuditBursts(ctx, since))

	return firstErr
}

// scanIdentityFailures raises an alert per identity whose failed logins in
// the window reach the threshold.
func (s *AlertService) scanIdentityFailures(ctx context.Context, since time.Time) error {
	counts, err := s.Store.Attempts().FailureCountsByIdentity(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to aggregate failures by identity: %w", err)
	}

	for _, c := range counts {
		if c.Count < s.Config.IdentityFailureThreshold {
			continue
		}

		id := c.IdentityID
		s.raise(ctx, domain.SecurityAlert{
			Rule:       domain.AlertRuleIdentityFailures,
			IdentityID: &id,
			Severity:   domain.SeverityHigh,
			Detail:     fmt.Sprintf("%d failed login attempts within %s", c.Count, s.Config.Window),
		}, since)
	}

	return nil
}

// scanIPFailures covers the two per-IP rules: raw failure volume, and one IP
// spraying attempts across many identifiers.
func (s *AlertService) scanIPFailures(ctx context.Context, since time.Time) error {
	counts, err := s.Store.Attempts().FailureCountsByIP(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to aggregate failures by ip: %w", err)
	}

	for _, c := range counts {
		if c.Count >= s.Config.IPFailureThreshold {
			s.raise(ctx, domain.SecurityAlert{
				Rule:     domain.AlertRuleIPFailures,
				IP:       c.IP,
				Severity: domain.SeverityHigh,
				Detail:   fmt.Sprintf("%d failed login attempts from %s within %s", c.Count, c.IP, s.Config.Window),
			}, since)
		}

		if c.DistinctIdentifiers >= s.Config.IPSpreadThreshold {
			s.raise(ctx, domain.SecurityAlert{
				Rule:     domain.AlertRuleIPSpread,
				IP:       c.IP,
				Severity: domain.SeverityCritical,
				Detail:   fmt.Sprintf("%s tried %d distinct identifiers within %s", c.IP, c.DistinctIdentifiers, s.Config.Window),
			}, since)
		}
	}

	return nil
}

// scanAuditBursts flags identities producing an unusual volume of audited
// write operations, a typical sign of a scripted session.
func (s *AlertService) scanAuditBursts(ctx context.Context, since time.Time) error {
	counts, err := s.Store.Audit().CountsByIdentity(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to aggregate audit records: %w", err)
	}

	for _, c := range counts {
		if c.Count < s.Config.AuditBurstThreshold {
			continue
		}

		id := c.IdentityID
		s.raise(ctx, domain.SecurityAlert{
			Rule:       domain.AlertRuleAuditBurst,
			IdentityID: &id,
			Severity:   domain.SeverityMedium,
			Detail:     fmt.Sprintf("%d audited operations within %s", c.Count, s.Config.Window),
		}, since)
	}

	return nil
}

// raise persists an alert unless an equivalent one already exists in the
// window.
func (s *AlertService) raise(ctx context.Context, alert domain.SecurityAlert, since time.Time) {
	exists, err := s.Store.Alerts().ExistsSince(ctx, alert.Rule, alert.IdentityID, alert.IP, since)
	if err != nil {
		s.Logger.Error("failed to check for existing alert", "rule", alert.Rule, "error", err)
		return
	}
	if exists {
		return
	}

	if err := s.Store.Alerts().Create(ctx, alert); err != nil {
		s.Logger.Error("failed to record alert", "rule", alert.Rule, "error", err)
		return
	}

	s.Logger.Warn("security alert raised",
		"rule", alert.Rule,
		"severity", alert.Severity,
		"detail", alert.Detail,
	)
}
