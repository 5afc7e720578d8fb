package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	flagmodels "lted/internal/flag/models"
	govmodels "lted/internal/governance/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	"lted/pkg/platform/sentinel"
	txcontext "lted/pkg/platform/tx"
)

type tx struct {
	q txcontext.Executor
}

// Governance

func (t *tx) GovernanceConfig(ctx context.Context) (*govmodels.Config, error) {
	var (
		cfg     govmodels.Config
		reasons pq.StringArray
	)
	err := t.q.QueryRowContext(ctx, `
		SELECT required_party_code, require_assembly_district_match, max_seats_per_lted,
		       non_overridable_ineligible_reasons, updated_at
		FROM governance_config WHERE id = 1`,
	).Scan(&cfg.RequiredPartyCode, &cfg.RequireAssemblyDistrictMatch, &cfg.MaxSeatsPerLTED, &reasons, &cfg.UpdatedAt)
	if err != nil {
		return nil, mapErr(fmt.Errorf("load governance config: %w", err))
	}
	for _, r := range reasons {
		cfg.NonOverridableIneligibleReasons = append(cfg.NonOverridableIneligibleReasons, govmodels.Reason(r))
	}
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

const termColumns = `id, label, start_date, end_date, is_active`

func scanTerm(row rowScanner) (*govmodels.Term, error) {
	var (
		term govmodels.Term
		tid  uuid.UUID
	)
	if err := row.Scan(&tid, &term.Label, &term.StartDate, &term.EndDate, &term.IsActive); err != nil {
		return nil, err
	}
	term.ID = id.TermID(tid)
	term.StartDate = term.StartDate.UTC()
	term.EndDate = term.EndDate.UTC()
	return &term, nil
}

func (t *tx) ActiveTerm(ctx context.Context) (*govmodels.Term, error) {
	term, err := scanTerm(t.q.QueryRowContext(ctx, `SELECT `+termColumns+` FROM terms WHERE is_active`))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load active term: %w", err))
	}
	return term, nil
}

func (t *tx) FindTerm(ctx context.Context, termID id.TermID) (*govmodels.Term, error) {
	term, err := scanTerm(t.q.QueryRowContext(ctx, `SELECT `+termColumns+` FROM terms WHERE id = $1`, termID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load term %s: %w", termID, err))
	}
	return term, nil
}

func (t *tx) FindCrosswalk(ctx context.Context, key govmodels.DistrictKey) (*govmodels.Crosswalk, error) {
	cw := govmodels.Crosswalk{Key: key}
	err := t.q.QueryRowContext(ctx, `
		SELECT assembly_district FROM crosswalks
		WHERE city_town = $1 AND leg_district = $2 AND election_district = $3`,
		key.CityTown, key.LegDistrict, key.ElectionDistrict,
	).Scan(&cw.AssemblyDistrict)
	if err != nil {
		return nil, mapErr(fmt.Errorf("load crosswalk: %w", err))
	}
	return &cw, nil
}

func (t *tx) ListCrosswalks(ctx context.Context, keys []govmodels.DistrictKey) ([]*govmodels.Crosswalk, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cities := make([]string, len(keys))
	legs := make([]string, len(keys))
	eds := make([]int64, len(keys))
	for i, k := range keys {
		cities[i], legs[i], eds[i] = k.CityTown, k.LegDistrict, int64(k.ElectionDistrict)
	}
	rows, err := t.q.QueryContext(ctx, `
		SELECT c.city_town, c.leg_district, c.election_district, c.assembly_district
		FROM crosswalks c
		JOIN unnest($1::text[], $2::text[], $3::int[]) AS k(city_town, leg_district, election_district)
		  USING (city_town, leg_district, election_district)`,
		pq.Array(cities), pq.Array(legs), pq.Array(eds),
	)
	if err != nil {
		return nil, mapErr(fmt.Errorf("list crosswalks: %w", err))
	}
	defer rows.Close()

	var out []*govmodels.Crosswalk
	for rows.Next() {
		var cw govmodels.Crosswalk
		if err := rows.Scan(&cw.Key.CityTown, &cw.Key.LegDistrict, &cw.Key.ElectionDistrict, &cw.AssemblyDistrict); err != nil {
			return nil, fmt.Errorf("scan crosswalk: %w", err)
		}
		out = append(out, &cw)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate crosswalks: %w", err))
	}
	return out, nil
}

// Voters

const voterColumns = `id, state_voter_id, first_name, last_name, party, assembly_district, last_import_year, last_import_sequence`

func scanVoter(row rowScanner) (*votermodels.Voter, error) {
	var (
		v         votermodels.Voter
		vid       uuid.UUID
		year, seq sql.NullInt64
	)
	if err := row.Scan(&vid, &v.StateVoterID, &v.FirstName, &v.LastName, &v.Party, &v.AssemblyDistrict, &year, &seq); err != nil {
		return nil, err
	}
	v.ID = id.VoterID(vid)
	if year.Valid && seq.Valid {
		v.LastImport = &votermodels.ImportVersion{Year: int(year.Int64), Sequence: int(seq.Int64)}
	}
	return &v, nil
}

func (t *tx) FindVoter(ctx context.Context, voterID id.VoterID) (*votermodels.Voter, error) {
	v, err := scanVoter(t.q.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voters WHERE id = $1`, voterID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load voter %s: %w", voterID, err))
	}
	return v, nil
}

func (t *tx) ListVoters(ctx context.Context, voterIDs []id.VoterID) ([]*votermodels.Voter, error) {
	if len(voterIDs) == 0 {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `SELECT `+voterColumns+` FROM voters WHERE id = ANY($1::uuid[])`, pq.Array(idStrings(voterIDs)))
	if err != nil {
		return nil, mapErr(fmt.Errorf("list voters: %w", err))
	}
	defer rows.Close()

	var out []*votermodels.Voter
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate voters: %w", err))
	}
	return out, nil
}

func (t *tx) LatestImportVersion(ctx context.Context) (*votermodels.ImportVersion, error) {
	var v votermodels.ImportVersion
	err := t.q.QueryRowContext(ctx, `SELECT year, sequence FROM voter_import_versions WHERE id = 1`).Scan(&v.Year, &v.Sequence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("load latest import version: %w", err))
	}
	return &v, nil
}

// Committees and seats

const committeeColumns = `id, term_id, city_town, leg_district, election_district, lted_weight`

func scanCommittee(row rowScanner) (*seatmodels.Committee, error) {
	var (
		c        seatmodels.Committee
		cid, tid uuid.UUID
	)
	if err := row.Scan(&cid, &tid, &c.CityTown, &c.LegDistrict, &c.ElectionDistrict, &c.LTEDWeight); err != nil {
		return nil, err
	}
	c.ID = id.CommitteeID(cid)
	c.TermID = id.TermID(tid)
	return &c, nil
}

func (t *tx) FindCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error) {
	c, err := scanCommittee(t.q.QueryRowContext(ctx, `SELECT `+committeeColumns+` FROM committees WHERE id = $1`, committeeID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load committee %s: %w", committeeID, err))
	}
	return c, nil
}

func (t *tx) ListCommittees(ctx context.Context, termID id.TermID) ([]*seatmodels.Committee, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+committeeColumns+` FROM committees
		WHERE term_id = $1
		ORDER BY city_town, leg_district, election_district`, termID.String())
	if err != nil {
		return nil, mapErr(fmt.Errorf("list committees: %w", err))
	}
	defer rows.Close()

	var out []*seatmodels.Committee
	for rows.Next() {
		c, err := scanCommittee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan committee: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate committees: %w", err))
	}
	return out, nil
}

func (t *tx) LockCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error) {
	c, err := scanCommittee(t.q.QueryRowContext(ctx, `SELECT `+committeeColumns+` FROM committees WHERE id = $1 FOR UPDATE`, committeeID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("lock committee %s: %w", committeeID, err))
	}
	return c, nil
}

func (t *tx) UpdateCommitteeWeight(ctx context.Context, committeeID id.CommitteeID, weight decimal.NullDecimal) error {
	res, err := t.q.ExecContext(ctx, `UPDATE committees SET lted_weight = $2 WHERE id = $1`, committeeID.String(), weight)
	if err != nil {
		return mapErr(fmt.Errorf("update committee weight: %w", err))
	}
	return requireRow(res, "committee "+committeeID.String())
}

func (t *tx) InsertSeatsSkipDuplicates(ctx context.Context, seats []*seatmodels.Seat) (int, error) {
	created := 0
	for _, s := range seats {
		res, err := t.q.ExecContext(ctx, `
			INSERT INTO seats (committee_id, term_id, seat_number, is_petitioned, weight, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (committee_id, term_id, seat_number) DO NOTHING`,
			s.CommitteeID.String(), s.TermID.String(), s.SeatNumber, s.IsPetitioned, s.Weight, s.CreatedAt,
		)
		if err != nil {
			return created, mapErr(fmt.Errorf("insert seat %d: %w", s.SeatNumber, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("insert seat rows affected: %w", err)
		}
		created += int(n)
	}
	return created, nil
}

func (t *tx) ListSeats(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*seatmodels.Seat, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT committee_id, term_id, seat_number, is_petitioned, weight, created_at
		FROM seats WHERE committee_id = $1 AND term_id = $2
		ORDER BY seat_number`, committeeID.String(), termID.String())
	if err != nil {
		return nil, mapErr(fmt.Errorf("list seats: %w", err))
	}
	defer rows.Close()

	var out []*seatmodels.Seat
	for rows.Next() {
		var (
			s        seatmodels.Seat
			cid, tid uuid.UUID
		)
		if err := rows.Scan(&cid, &tid, &s.SeatNumber, &s.IsPetitioned, &s.Weight, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		s.CommitteeID = id.CommitteeID(cid)
		s.TermID = id.TermID(tid)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate seats: %w", err))
	}
	return out, nil
}

func (t *tx) UpdateSeatWeights(ctx context.Context, committeeID id.CommitteeID, termID id.TermID, weight decimal.NullDecimal) (int, error) {
	res, err := t.q.ExecContext(ctx, `UPDATE seats SET weight = $3 WHERE committee_id = $1 AND term_id = $2`,
		committeeID.String(), termID.String(), weight)
	if err != nil {
		return 0, mapErr(fmt.Errorf("update seat weights: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update seat weights rows affected: %w", err)
	}
	return int(n), nil
}

func (t *tx) MarkSeatPetitioned(ctx context.Context, committeeID id.CommitteeID, termID id.TermID, seatNumber int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE seats SET is_petitioned = TRUE
		WHERE committee_id = $1 AND term_id = $2 AND seat_number = $3`,
		committeeID.String(), termID.String(), seatNumber)
	if err != nil {
		return mapErr(fmt.Errorf("mark seat petitioned: %w", err))
	}
	return requireRow(res, fmt.Sprintf("seat %d", seatNumber))
}

// Memberships

func (t *tx) FindMembership(ctx context.Context, membershipID id.MembershipID) (*membershipmodels.Membership, error) {
	m, err := scanMembership(t.q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = $1`, membershipID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load membership %s: %w", membershipID, err))
	}
	return m, nil
}

func (t *tx) FindMembershipByKey(ctx context.Context, voterID id.VoterID, committeeID id.CommitteeID, termID id.TermID) (*membershipmodels.Membership, error) {
	m, err := scanMembership(t.q.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM memberships
		WHERE voter_id = $1 AND committee_id = $2 AND term_id = $3`,
		voterID.String(), committeeID.String(), termID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load membership by key: %w", err))
	}
	return m, nil
}

func (t *tx) CountActive(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE committee_id = $1 AND term_id = $2 AND status = 'ACTIVE'`,
		committeeID.String(), termID.String()).Scan(&n)
	if err != nil {
		return 0, mapErr(fmt.Errorf("count active memberships: %w", err))
	}
	return n, nil
}

func (t *tx) ListActiveByCommittee(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.listMemberships(ctx, `committee_id = $1 AND term_id = $2 AND status = 'ACTIVE'`, committeeID.String(), termID.String())
}

func (t *tx) ListActiveByVoter(ctx context.Context, voterID id.VoterID, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.listMemberships(ctx, `voter_id = $1 AND term_id = $2 AND status = 'ACTIVE'`, voterID.String(), termID.String())
}

func (t *tx) ListActiveByTerm(ctx context.Context, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.listMemberships(ctx, `term_id = $1 AND status = 'ACTIVE'`, termID.String())
}

func (t *tx) ListByMeeting(ctx context.Context, meetingID id.MeetingID) ([]*membershipmodels.Membership, error) {
	return t.listMemberships(ctx, `meeting_id = $1`, meetingID.String())
}

func (t *tx) listMemberships(ctx context.Context, where string, args ...any) ([]*membershipmodels.Membership, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, mapErr(fmt.Errorf("list memberships: %w", err))
	}
	defer rows.Close()

	var out []*membershipmodels.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate memberships: %w", err))
	}
	return out, nil
}

func (t *tx) CreateMembership(ctx context.Context, m *membershipmodels.Membership) error {
	args, err := membershipArgs(m)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx, `
		INSERT INTO memberships (`+membershipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		args...)
	if err != nil {
		return mapErr(fmt.Errorf("create membership: %w", err))
	}
	return nil
}

func (t *tx) UpdateMembershipIfStatus(ctx context.Context, m *membershipmodels.Membership, expected membershipmodels.Status) (bool, error) {
	args, err := membershipArgs(m)
	if err != nil {
		return false, err
	}
	// Identity columns and created_at never change after insert.
	params := append([]any{args[0], string(expected)}, args[4:21]...)
	params = append(params, args[22])
	res, err := t.q.ExecContext(ctx, `
		UPDATE memberships SET
			status = $3, membership_type = $4, seat_number = $5,
			submitted_at = $6, confirmed_at = $7, activated_at = $8, rejected_at = $9,
			removed_at = $10, resigned_at = $11, removal_reason = $12, removal_notes = $13,
			rejection_note = $14, petition_vote_count = $15, petition_primary_date = $16,
			meeting_id = $17, submitted_by = $18, submission_metadata = $19, updated_at = $20
		WHERE id = $1 AND status = $2`,
		params...)
	if err != nil {
		return false, mapErr(fmt.Errorf("update membership: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update membership rows affected: %w", err)
	}
	return n > 0, nil
}

// Flags

func (t *tx) FindFlag(ctx context.Context, flagID id.FlagID) (*flagmodels.Flag, error) {
	f, err := scanFlag(t.q.QueryRowContext(ctx, `SELECT `+flagColumns+` FROM eligibility_flags WHERE id = $1`, flagID.String()))
	if err != nil {
		return nil, mapErr(fmt.Errorf("load flag %s: %w", flagID, err))
	}
	return f, nil
}

func (t *tx) ListPendingFlags(ctx context.Context, membershipIDs []id.MembershipID) ([]*flagmodels.Flag, error) {
	if len(membershipIDs) == 0 {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+flagColumns+` FROM eligibility_flags
		WHERE membership_id = ANY($1::uuid[]) AND status = 'PENDING'
		ORDER BY created_at, id`, pq.Array(idStrings(membershipIDs)))
	if err != nil {
		return nil, mapErr(fmt.Errorf("list pending flags: %w", err))
	}
	defer rows.Close()

	var out []*flagmodels.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Errorf("iterate flags: %w", err))
	}
	return out, nil
}

// CreateFlagsSkipDuplicates inserts the batch in one statement; rows that hit
// the pending-uniqueness index are dropped by ON CONFLICT DO NOTHING.
func (t *tx) CreateFlagsSkipDuplicates(ctx context.Context, flags []*flagmodels.Flag) (int, error) {
	if len(flags) == 0 {
		return 0, nil
	}
	var (
		ids, mids, reasons, statuses, details, created, updated []string
		sources                                                 []sql.NullString
	)
	for _, f := range flags {
		d, err := json.Marshal(f.Details)
		if err != nil {
			return 0, fmt.Errorf("encode flag details: %w", err)
		}
		ids = append(ids, f.ID.String())
		mids = append(mids, f.MembershipID.String())
		reasons = append(reasons, string(f.Reason))
		statuses = append(statuses, string(f.Status))
		details = append(details, string(d))
		sources = append(sources, nullString(f.SourceReportID))
		created = append(created, f.CreatedAt.Format(time.RFC3339Nano))
		updated = append(updated, f.UpdatedAt.Format(time.RFC3339Nano))
	}
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO eligibility_flags (id, membership_id, reason, status, details, source_report_id, created_at, updated_at)
		SELECT u.id, u.membership_id, u.reason, u.status, u.details::jsonb, u.source_report_id, u.created_at, u.updated_at
		FROM unnest($1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::text[], $6::text[], $7::timestamptz[], $8::timestamptz[])
		  AS u(id, membership_id, reason, status, details, source_report_id, created_at, updated_at)
		ON CONFLICT DO NOTHING`,
		pq.Array(ids), pq.Array(mids), pq.Array(reasons), pq.Array(statuses),
		pq.Array(details), pq.Array(sources), pq.Array(created), pq.Array(updated),
	)
	if err != nil {
		return 0, mapErr(fmt.Errorf("create flags: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("create flags rows affected: %w", err)
	}
	return int(n), nil
}

func (t *tx) UpdateFlagsIfPending(ctx context.Context, flags []*flagmodels.Flag) (int, error) {
	written := 0
	for _, f := range flags {
		d, err := json.Marshal(f.Details)
		if err != nil {
			return written, fmt.Errorf("encode flag details: %w", err)
		}
		var reviewedBy any
		if f.ReviewedBy != nil {
			reviewedBy = f.ReviewedBy.String()
		}
		res, err := t.q.ExecContext(ctx, `
			UPDATE eligibility_flags SET
				status = $2, details = $3, source_report_id = $4, updated_at = $5,
				reviewed_at = $6, reviewed_by = $7
			WHERE id = $1 AND status = 'PENDING'`,
			f.ID.String(), string(f.Status), d, nullString(f.SourceReportID), f.UpdatedAt,
			nullTime(f.ReviewedAt), reviewedBy,
		)
		if err != nil {
			return written, mapErr(fmt.Errorf("update flag %s: %w", f.ID, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, fmt.Errorf("update flag rows affected: %w", err)
		}
		written += int(n)
	}
	return written, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}

func idStrings[T interface{ String() string }](ids []T) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
