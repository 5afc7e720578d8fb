package memory

import (
	"context"

	govmodels "lted/internal/governance/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
)

func (s *Store) SaveGovernanceConfig(_ context.Context, cfg *govmodels.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.config = cloneConfig(cfg)
	return nil
}

// SaveTerm upserts a term. Saving an active term deactivates every other one.
func (s *Store) SaveTerm(_ context.Context, term *govmodels.Term) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if term.IsActive {
		for _, t := range s.data.terms {
			t.IsActive = false
		}
	}
	t := *term
	s.data.terms[t.ID] = &t
	return nil
}

func (s *Store) SaveCrosswalk(_ context.Context, cw *govmodels.Crosswalk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cw
	s.data.crosswalks[c.Key] = &c
	return nil
}

func (s *Store) SaveCommittee(_ context.Context, committee *seatmodels.Committee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *committee
	s.data.committees[c.ID] = &c
	return nil
}

func (s *Store) SaveVoter(_ context.Context, voter *votermodels.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.voters[voter.ID] = cloneVoter(voter)
	return nil
}

func (s *Store) SetLatestImportVersion(_ context.Context, v votermodels.ImportVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.latestImport = &v
	return nil
}

func cloneConfig(cfg *govmodels.Config) *govmodels.Config {
	c := *cfg
	c.NonOverridableIneligibleReasons = append([]govmodels.Reason(nil), cfg.NonOverridableIneligibleReasons...)
	return &c
}

func cloneVoter(v *votermodels.Voter) *votermodels.Voter {
	c := *v
	if v.LastImport != nil {
		li := *v.LastImport
		c.LastImport = &li
	}
	return &c
}
