package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	flagmodels "lted/internal/flag/models"
	membershipmodels "lted/internal/membership/models"
	id "lted/pkg/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const membershipColumns = `
	id, voter_id, committee_id, term_id, status, membership_type, seat_number,
	submitted_at, confirmed_at, activated_at, rejected_at, removed_at, resigned_at,
	removal_reason, removal_notes, rejection_note, petition_vote_count, petition_primary_date,
	meeting_id, submitted_by, submission_metadata, created_at, updated_at`

func scanMembership(row rowScanner) (*membershipmodels.Membership, error) {
	var (
		m                                                  membershipmodels.Membership
		mid, voterID, committeeID, termID                  uuid.UUID
		meetingID, submittedBy                             uuid.NullUUID
		membershipType, removalReason                      sql.NullString
		seat, voteCount                                    sql.NullInt64
		submitted, confirmed, activated, rejected, removed sql.NullTime
		resigned, primaryDate                              sql.NullTime
		meta                                               []byte
	)
	err := row.Scan(
		&mid, &voterID, &committeeID, &termID, &m.Status, &membershipType, &seat,
		&submitted, &confirmed, &activated, &rejected, &removed, &resigned,
		&removalReason, &m.RemovalNotes, &m.RejectionNote, &voteCount, &primaryDate,
		&meetingID, &submittedBy, &meta, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ID = id.MembershipID(mid)
	m.VoterID = id.VoterID(voterID)
	m.CommitteeID = id.CommitteeID(committeeID)
	m.TermID = id.TermID(termID)
	if membershipType.Valid {
		t := membershipmodels.MembershipType(membershipType.String)
		m.MembershipType = &t
	}
	if removalReason.Valid {
		r := membershipmodels.RemovalReason(removalReason.String)
		m.RemovalReason = &r
	}
	m.SeatNumber = intPtr(seat)
	m.PetitionVoteCount = intPtr(voteCount)
	m.SubmittedAt = timePtr(submitted)
	m.ConfirmedAt = timePtr(confirmed)
	m.ActivatedAt = timePtr(activated)
	m.RejectedAt = timePtr(rejected)
	m.RemovedAt = timePtr(removed)
	m.ResignedAt = timePtr(resigned)
	m.PetitionPrimaryDate = timePtr(primaryDate)
	if meetingID.Valid {
		mt := id.MeetingID(meetingID.UUID)
		m.MeetingID = &mt
	}
	if submittedBy.Valid {
		m.SubmittedBy = id.ActorID(submittedBy.UUID)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.SubmissionMetadata); err != nil {
			return nil, fmt.Errorf("decode submission metadata: %w", err)
		}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

// membershipArgs returns the column values in membershipColumns order.
func membershipArgs(m *membershipmodels.Membership) ([]any, error) {
	meta, err := json.Marshal(m.SubmissionMetadata)
	if err != nil {
		return nil, fmt.Errorf("encode submission metadata: %w", err)
	}
	var meetingID, submittedBy any
	if m.MeetingID != nil {
		meetingID = m.MeetingID.String()
	}
	if !m.SubmittedBy.IsNil() {
		submittedBy = m.SubmittedBy.String()
	}
	return []any{
		m.ID.String(), m.VoterID.String(), m.CommitteeID.String(), m.TermID.String(),
		string(m.Status), nullString(m.MembershipType), nullInt(m.SeatNumber),
		nullTime(m.SubmittedAt), nullTime(m.ConfirmedAt), nullTime(m.ActivatedAt),
		nullTime(m.RejectedAt), nullTime(m.RemovedAt), nullTime(m.ResignedAt),
		nullString(m.RemovalReason), m.RemovalNotes, m.RejectionNote,
		nullInt(m.PetitionVoteCount), nullTime(m.PetitionPrimaryDate),
		meetingID, submittedBy, meta, m.CreatedAt, m.UpdatedAt,
	}, nil
}

const flagColumns = `id, membership_id, reason, status, details, source_report_id, created_at, updated_at, reviewed_at, reviewed_by`

func scanFlag(row rowScanner) (*flagmodels.Flag, error) {
	var (
		f              flagmodels.Flag
		fid, mid       uuid.UUID
		details        []byte
		sourceReportID sql.NullString
		reviewedAt     sql.NullTime
		reviewedBy     uuid.NullUUID
	)
	if err := row.Scan(&fid, &mid, &f.Reason, &f.Status, &details, &sourceReportID, &f.CreatedAt, &f.UpdatedAt, &reviewedAt, &reviewedBy); err != nil {
		return nil, err
	}
	f.ID = id.FlagID(fid)
	f.MembershipID = id.MembershipID(mid)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &f.Details); err != nil {
			return nil, fmt.Errorf("decode flag details: %w", err)
		}
	}
	if sourceReportID.Valid {
		s := sourceReportID.String
		f.SourceReportID = &s
	}
	f.ReviewedAt = timePtr(reviewedAt)
	if reviewedBy.Valid {
		by := id.ActorID(reviewedBy.UUID)
		f.ReviewedBy = &by
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString[T ~string](s *T) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
