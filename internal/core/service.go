package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/RiskTracker/internal/config"
)

// Service exposes the import, audit, query and export pipelines to the
// presentation layer. It holds no storage state: every operation goes
// through the Store passed to NewService.
type Service struct {
	store    Store
	cfg      config.ImportConfig
	limiter  *ImportLimiter
	recorder Recorder
	now      func() time.Time
}

// Recorder observes pipeline outcomes. internal/metrics implements it.
type Recorder interface {
	ImportFinished(report *ImportReport, err error)
	SaveFinished(outcome SaveOutcome, entries int)
	ExportFinished(format string, err error)
}

// SaveOutcome classifies a Save call for observability.
type SaveOutcome string

const (
	SaveChanged   SaveOutcome = "changed"
	SaveUnchanged SaveOutcome = "unchanged"
	SaveInvalid   SaveOutcome = "invalid"
	SaveNotFound  SaveOutcome = "not_found"
	SaveConflict  SaveOutcome = "conflict"
	SaveFailed    SaveOutcome = "error"
)

type nopRecorder struct{}

func (nopRecorder) ImportFinished(*ImportReport, error) {}
func (nopRecorder) SaveFinished(SaveOutcome, int)       {}
func (nopRecorder) ExportFinished(string, error)        {}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder reports pipeline outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service over store. Empty sheet names fall back to the
// template defaults.
func NewService(store Store, cfg config.ImportConfig, opts ...Option) *Service {
	if cfg.RiskSheet == "" {
		cfg.RiskSheet = DefaultRiskSheet
	}
	if cfg.ControlSheet == "" {
		cfg.ControlSheet = DefaultControlSheet
	}

	s := &Service{
		store:    store,
		cfg:      cfg,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Default sheet names of the template.
const (
	DefaultRiskSheet    = "RiskAssessment-Detailed"
	DefaultControlSheet = "ControlMeasures"
)

// RiskSheet returns the configured risk item sheet name.
func (s *Service) RiskSheet() string { return s.cfg.RiskSheet }

// ControlSheet returns the configured control measure sheet name.
func (s *Service) ControlSheet() string { return s.cfg.ControlSheet }

// Ping checks the storage collaborator.
func (s *Service) Ping(ctx context.Context) error {
	return WrapStorage("ping", s.store.Ping(ctx))
}

// ImportLimiterStatus reports running imports.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
