package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	govmodels "lted/internal/governance/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
)

func (s *Store) SaveGovernanceConfig(ctx context.Context, cfg *govmodels.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	reasons := make([]string, len(cfg.NonOverridableIneligibleReasons))
	for i, r := range cfg.NonOverridableIneligibleReasons {
		reasons[i] = string(r)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO governance_config (id, required_party_code, require_assembly_district_match,
		                               max_seats_per_lted, non_overridable_ineligible_reasons, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			required_party_code = EXCLUDED.required_party_code,
			require_assembly_district_match = EXCLUDED.require_assembly_district_match,
			max_seats_per_lted = EXCLUDED.max_seats_per_lted,
			non_overridable_ineligible_reasons = EXCLUDED.non_overridable_ineligible_reasons,
			updated_at = EXCLUDED.updated_at`,
		cfg.RequiredPartyCode, cfg.RequireAssemblyDistrictMatch, cfg.MaxSeatsPerLTED, pq.Array(reasons), cfg.UpdatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("save governance config: %w", err))
	}
	return nil
}

// SaveTerm upserts a term. Saving an active term deactivates every other one.
func (s *Store) SaveTerm(ctx context.Context, term *govmodels.Term) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("begin save term: %w", err))
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if term.IsActive {
		if _, err := sqlTx.ExecContext(ctx, `UPDATE terms SET is_active = FALSE WHERE is_active AND id <> $1`, term.ID.String()); err != nil {
			return mapErr(fmt.Errorf("deactivate terms: %w", err))
		}
	}
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO terms (id, label, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			is_active = EXCLUDED.is_active`,
		term.ID.String(), term.Label, term.StartDate, term.EndDate, term.IsActive,
	)
	if err != nil {
		return mapErr(fmt.Errorf("save term: %w", err))
	}
	if err := sqlTx.Commit(); err != nil {
		return mapErr(fmt.Errorf("commit save term: %w", err))
	}
	return nil
}

func (s *Store) SaveCrosswalk(ctx context.Context, cw *govmodels.Crosswalk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crosswalks (city_town, leg_district, election_district, assembly_district)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (city_town, leg_district, election_district)
		DO UPDATE SET assembly_district = EXCLUDED.assembly_district`,
		cw.Key.CityTown, cw.Key.LegDistrict, cw.Key.ElectionDistrict, cw.AssemblyDistrict,
	)
	if err != nil {
		return mapErr(fmt.Errorf("save crosswalk: %w", err))
	}
	return nil
}

func (s *Store) SaveCommittee(ctx context.Context, c *seatmodels.Committee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO committees (id, term_id, city_town, leg_district, election_district, lted_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET lted_weight = EXCLUDED.lted_weight`,
		c.ID.String(), c.TermID.String(), c.CityTown, c.LegDistrict, c.ElectionDistrict, c.LTEDWeight,
	)
	if err != nil {
		return mapErr(fmt.Errorf("save committee: %w", err))
	}
	return nil
}

func (s *Store) SaveVoter(ctx context.Context, v *votermodels.Voter) error {
	var year, seq sql.NullInt64
	if v.LastImport != nil {
		year = sql.NullInt64{Int64: int64(v.LastImport.Year), Valid: true}
		seq = sql.NullInt64{Int64: int64(v.LastImport.Sequence), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voters (id, state_voter_id, first_name, last_name, party, assembly_district,
		                    last_import_year, last_import_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state_voter_id = EXCLUDED.state_voter_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			party = EXCLUDED.party,
			assembly_district = EXCLUDED.assembly_district,
			last_import_year = EXCLUDED.last_import_year,
			last_import_sequence = EXCLUDED.last_import_sequence`,
		v.ID.String(), v.StateVoterID, v.FirstName, v.LastName, v.Party, v.AssemblyDistrict, year, seq,
	)
	if err != nil {
		return mapErr(fmt.Errorf("save voter: %w", err))
	}
	return nil
}

func (s *Store) SetLatestImportVersion(ctx context.Context, v votermodels.ImportVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voter_import_versions (id, year, sequence) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET year = EXCLUDED.year, sequence = EXCLUDED.sequence`,
		v.Year, v.Sequence,
	)
	if err != nil {
		return mapErr(fmt.Errorf("set latest import version: %w", err))
	}
	return nil
}
