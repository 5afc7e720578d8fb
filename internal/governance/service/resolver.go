// Package service resolves the governance rules and the term a core operation
// runs against.
package service

import (
	"context"

	"lted/internal/governance/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

// Reader is the subset of storage.GovernanceReader the resolver needs.
type Reader interface {
	GovernanceConfig(ctx context.Context) (*models.Config, error)
	ActiveTerm(ctx context.Context) (*models.Term, error)
	FindTerm(ctx context.Context, termID id.TermID) (*models.Term, error)
}

// Governance is the rule set and term resolved for one unit of work.
type Governance struct {
	Config *models.Config
	Term   *models.Term
}

// Resolve loads and validates the singleton config, and the requested term.
// A nil termID selects the active term.
func Resolve(ctx context.Context, r Reader, termID *id.TermID) (*Governance, error) {
	cfg, err := LoadConfig(ctx, r)
	if err != nil {
		return nil, err
	}
	term, err := LoadTerm(ctx, r, termID)
	if err != nil {
		return nil, err
	}
	return &Governance{Config: cfg, Term: term}, nil
}

// LoadConfig reads the singleton config and enforces its invariants.
func LoadConfig(ctx context.Context, r Reader) (*models.Config, error) {
	cfg, err := r.GovernanceConfig(ctx)
	if err != nil {
		return nil, storage.Translate(err, "governance config is not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTerm returns the given term, or the active one when termID is nil.
func LoadTerm(ctx context.Context, r Reader, termID *id.TermID) (*models.Term, error) {
	if termID == nil || termID.IsNil() {
		term, err := r.ActiveTerm(ctx)
		if err != nil {
			return nil, storage.Translate(err, "no active term")
		}
		return term, nil
	}
	term, err := r.FindTerm(ctx, *termID)
	if err != nil {
		return nil, storage.Translate(err, "term not found")
	}
	return term, nil
}

// Service exposes the resolver outside an existing unit of work.
type Service struct {
	store storage.Store
}

func New(store storage.Store) *Service {
	return &Service{store: store}
}

// Current returns the governance config and the active term.
func (s *Service) Current(ctx context.Context) (*Governance, error) {
	var out *Governance
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		g, err := Resolve(ctx, tx, nil)
		out = g
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsMissing reports whether err means the governance data was never seeded.
func IsMissing(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound)
}
