package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lted/internal/eligibility"
	govmodels "lted/internal/governance/models"
	"lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	seatservice "lted/internal/seat/service"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/platform/sentinel"
)

// CapacityRejectionNote is stored on memberships rejected because every seat
// was taken at acceptance time.
const CapacityRejectionNote = "Committee at capacity at time of acceptance"

// activation describes one path into ACTIVE. Accept and discrepancy
// acceptance differ only in these knobs; both must run under the committee
// lock taken by the caller.
type activation struct {
	kind       string
	membership *models.Membership
	isNew      bool
	committee  *seatmodels.Committee
	config     *govmodels.Config
	// revalidate runs the eligibility validator, honoring a stored override.
	revalidate bool
	// rejectOnCapacity turns a full committee into a REJECTED membership
	// instead of a conflict.
	rejectOnCapacity bool
	replaceVoterID   *id.VoterID
	meetingID        *id.MeetingID
	at               time.Time
}

type activationOutcome struct {
	membership       *models.Membership
	replaced         *models.Membership
	capacityRejected bool
}

func (s *Service) activate(ctx context.Context, tx storage.Tx, batch *audit.Batch, a activation) (*activationOutcome, error) {
	m := a.membership
	before := m.Clone()
	term := a.committee.TermID

	if a.revalidate {
		opts := eligibility.Options{Activation: true}
		if o := m.SubmissionMetadata.Override; o != nil {
			opts.ForceAdd = true
			opts.OverrideReason = o.Reason
		}
		res, err := s.validator.Validate(ctx, tx, a.config, eligibility.Input{
			VoterID:     m.VoterID,
			CommitteeID: a.committee.ID,
			TermID:      term,
		}, opts)
		if err != nil {
			return nil, err
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
	}

	var target *models.Membership
	if a.replaceVoterID != nil {
		t, err := tx.FindMembershipByKey(ctx, *a.replaceVoterID, a.committee.ID, term)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "replacement target is no longer active")
		}
		if err != nil {
			return nil, storage.Translate(err, "failed to load replacement target")
		}
		if t.ID == m.ID {
			return nil, dErrors.New(dErrors.CodeConflict, "a membership cannot replace itself")
		}
		if !t.IsActive() {
			return nil, dErrors.New(dErrors.CodeConflict, "replacement target is no longer active")
		}
		target = t
	}

	active, err := tx.CountActive(ctx, a.committee.ID, term)
	if err != nil {
		return nil, storage.Translate(err, "failed to count active memberships")
	}
	if target != nil {
		active--
	}
	if active >= a.config.MaxSeatsPerLTED {
		if !a.rejectOnCapacity {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("committee is at capacity (%d seats)", a.config.MaxSeatsPerLTED))
		}
		if err := m.ApplyReject(a.at, CapacityRejectionNote); err != nil {
			return nil, err
		}
		m.MeetingID = a.meetingID
		if err := persist(ctx, tx, m, before.Status, a.isNew); err != nil {
			return nil, err
		}
		batch.Add(membershipEvent(audit.ActionMembershipRejected, before, m, map[string]any{
			"reason":    "capacity",
			"max_seats": a.config.MaxSeatsPerLTED,
		}))
		s.metrics.IncrementCapacityRejection()
		return &activationOutcome{membership: m, capacityRejected: true}, nil
	}

	out := &activationOutcome{membership: m}
	if target != nil {
		replacedBefore := target.Clone()
		note := "Replaced by membership " + m.ID.String()
		if err := target.ApplyRemove(a.at, models.RemovalOther, note); err != nil {
			return nil, err
		}
		if err := persist(ctx, tx, target, models.StatusActive, false); err != nil {
			return nil, err
		}
		batch.Add(membershipEvent(audit.ActionMembershipReplaced, replacedBefore, target, map[string]any{
			"replaced_by": m.ID.String(),
		}))
		out.replaced = target
	}

	seat, err := seatservice.AssignNextAvailableSeat(ctx, tx, a.committee, a.config.MaxSeatsPerLTED)
	if err != nil {
		return nil, err
	}
	if m.Status == models.StatusSubmitted {
		err = m.ApplyAccept(a.at, seat)
	} else {
		err = m.ApplyReactivate(a.at, seat)
	}
	if err != nil {
		return nil, err
	}
	if a.meetingID != nil {
		m.MeetingID = a.meetingID
	}
	if err := persist(ctx, tx, m, before.Status, a.isNew); err != nil {
		return nil, err
	}
	meta := map[string]any{
		"path":        a.kind,
		"seat_number": seat,
	}
	if out.replaced != nil {
		meta["replaced_membership_id"] = out.replaced.ID.String()
	}
	batch.Add(membershipEvent(audit.ActionMembershipActivated, before, m, meta))
	return out, nil
}
