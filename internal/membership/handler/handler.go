// Package handler is the JSON HTTP adapter over the governance services. It
// parses and validates input, delegates, and maps typed results and coded
// errors onto status codes. It holds no business rules.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"lted/internal/eligibility"
	flagmodels "lted/internal/flag/models"
	"lted/internal/flag/reconcile"
	"lted/internal/flag/review"
	"lted/internal/membership/models"
	membershipservice "lted/internal/membership/service"
	seatmodels "lted/internal/seat/models"
	seatservice "lted/internal/seat/service"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/httputil"
	"lted/pkg/requestcontext"
)

// MembershipService is the membership lifecycle surface the adapter drives.
type MembershipService interface {
	Get(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	Submit(ctx context.Context, req membershipservice.SubmitRequest) (*membershipservice.SubmitResult, error)
	Accept(ctx context.Context, membershipID id.MembershipID) (*models.AcceptResult, error)
	Reject(ctx context.Context, membershipID id.MembershipID, note string) (*models.Membership, error)
	Resign(ctx context.Context, membershipID id.MembershipID, notes string) (*models.Membership, error)
	Remove(ctx context.Context, membershipID id.MembershipID, reason models.RemovalReason, notes string) (*models.Membership, error)
	BulkDecide(ctx context.Context, meetingID id.MeetingID, decisions []models.MeetingDecision) ([]models.DecisionResult, error)
	ListMeeting(ctx context.Context, meetingID id.MeetingID) ([]*models.Membership, error)
	RecordPetitionOutcome(ctx context.Context, req membershipservice.PetitionRequest) (*membershipservice.PetitionResult, error)
	AcceptDiscrepancy(ctx context.Context, committeeID id.CommitteeID, voterID id.VoterID) (*models.DiscrepancyResult, error)
}

type SeatService interface {
	SetCommitteeWeight(ctx context.Context, committeeID id.CommitteeID, ltedWeight decimal.NullDecimal) (*seatmodels.Committee, error)
	CommitteeDesignationWeight(ctx context.Context, committeeID id.CommitteeID) (*seatservice.CommitteeWeight, error)
	CountyDesignationWeight(ctx context.Context, termID *id.TermID) (*seatservice.CountyWeight, error)
}

type EligibilityChecker interface {
	Check(ctx context.Context, voterID id.VoterID, committeeID id.CommitteeID, termID *id.TermID, opts eligibility.Options) (*eligibility.Result, error)
}

type Reconciler interface {
	Run(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
}

type FlagReviewer interface {
	Review(ctx context.Context, flagID id.FlagID, decision flagmodels.ReviewDecision, notes string) (*review.Result, error)
}

// Services bundles the collaborators the routes delegate to.
type Services struct {
	Memberships MembershipService
	Seats       SeatService
	Eligibility EligibilityChecker
	Reconciler  Reconciler
	Reviewer    FlagReviewer
}

type Handler struct {
	svc    Services
	logger *slog.Logger
}

func New(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the governance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/memberships", h.HandleSubmit)
	r.Get("/memberships/{id}", h.HandleGet)
	r.Post("/memberships/{id}/accept", h.HandleAccept)
	r.Post("/memberships/{id}/reject", h.HandleReject)
	r.Post("/memberships/{id}/resign", h.HandleResign)
	r.Post("/memberships/{id}/remove", h.HandleRemove)

	r.Post("/meetings/{meetingID}/decisions", h.HandleBulkDecide)
	r.Get("/meetings/{meetingID}/memberships", h.HandleListMeeting)

	r.Post("/committees/{committeeID}/seats/{seatNumber}/petition", h.HandlePetition)
	r.Post("/committees/{committeeID}/discrepancies", h.HandleDiscrepancy)
	r.Get("/committees/{committeeID}/weight", h.HandleCommitteeWeight)
	r.Put("/committees/{committeeID}/weight", h.HandleSetCommitteeWeight)
	r.Get("/weights", h.HandleCountyWeight)

	r.Post("/eligibility/check", h.HandleEligibilityCheck)
	r.Post("/reconciliations", h.HandleReconcile)
	r.Post("/flags/{id}/review", h.HandleReview)
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	level := slog.LevelInfo
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func pathID[T any](w http.ResponseWriter, r *http.Request, param string, parse func(string) (T, error)) (T, bool) {
	v, err := parse(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid "+param))
		var zero T
		return zero, false
	}
	return v, true
}

func decode[T any, PT interface {
	*T
	httputil.Validatable
}](h *Handler, w http.ResponseWriter, r *http.Request) (*T, bool) {
	ctx := r.Context()
	return httputil.DecodeAndPrepare[T, PT](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
}

// HandleSubmit handles POST /memberships.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[SubmitRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Memberships.Submit(r.Context(), membershipservice.SubmitRequest{
		VoterID:        req.VoterID,
		CommitteeID:    req.CommitteeID,
		TermID:         req.TermID,
		ForceAdd:       req.ForceAdd,
		OverrideReason: req.OverrideReason,
		ReplaceVoterID: req.ReplaceVoterID,
		Contact:        req.Contact,
		Extra:          req.Extra,
	})
	if err != nil {
		h.fail(w, r, "submit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleGet handles GET /memberships/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	m, err := h.svc.Memberships.Get(r.Context(), membershipID)
	if err != nil {
		h.fail(w, r, "get membership", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleAccept handles POST /memberships/{id}/accept. A capacity rejection is
// a completed transition, so it is reported as 200 with capacityRejected set.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	res, err := h.svc.Memberships.Accept(r.Context(), membershipID)
	if err != nil {
		h.fail(w, r, "accept", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleReject handles POST /memberships/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	req, ok := decode[NoteRequest](h, w, r)
	if !ok {
		return
	}
	m, err := h.svc.Memberships.Reject(r.Context(), membershipID, req.Note)
	if err != nil {
		h.fail(w, r, "reject", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleResign handles POST /memberships/{id}/resign.
func (h *Handler) HandleResign(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	req, ok := decode[NoteRequest](h, w, r)
	if !ok {
		return
	}
	m, err := h.svc.Memberships.Resign(r.Context(), membershipID, req.Note)
	if err != nil {
		h.fail(w, r, "resign", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleRemove handles POST /memberships/{id}/remove.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	membershipID, ok := pathID(w, r, "id", id.ParseMembershipID)
	if !ok {
		return
	}
	req, ok := decode[RemoveRequest](h, w, r)
	if !ok {
		return
	}
	m, err := h.svc.Memberships.Remove(r.Context(), membershipID, req.Reason, req.Notes)
	if err != nil {
		h.fail(w, r, "remove", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleBulkDecide handles POST /meetings/{meetingID}/decisions. Per-item
// failures are reported in the body; the request itself succeeds.
func (h *Handler) HandleBulkDecide(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := pathID(w, r, "meetingID", id.ParseMeetingID)
	if !ok {
		return
	}
	req, ok := decode[BulkDecisionRequest](h, w, r)
	if !ok {
		return
	}
	results, err := h.svc.Memberships.BulkDecide(r.Context(), meetingID, req.Decisions)
	if err != nil {
		h.fail(w, r, "bulk decide", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"meetingId": meetingID,
		"results":   results,
	})
}

// HandleListMeeting handles GET /meetings/{meetingID}/memberships.
func (h *Handler) HandleListMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID, ok := pathID(w, r, "meetingID", id.ParseMeetingID)
	if !ok {
		return
	}
	ms, err := h.svc.Memberships.ListMeeting(r.Context(), meetingID)
	if err != nil {
		h.fail(w, r, "list meeting", err)
		return
	}
	if ms == nil {
		ms = []*models.Membership{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"memberships": ms})
}

// HandlePetition handles POST /committees/{committeeID}/seats/{seatNumber}/petition.
func (h *Handler) HandlePetition(w http.ResponseWriter, r *http.Request) {
	committeeID, ok := pathID(w, r, "committeeID", id.ParseCommitteeID)
	if !ok {
		return
	}
	seatNumber, err := strconv.Atoi(chi.URLParam(r, "seatNumber"))
	if err != nil || seatNumber < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "seatNumber must be a positive integer"))
		return
	}
	req, ok := decode[PetitionRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Memberships.RecordPetitionOutcome(r.Context(), membershipservice.PetitionRequest{
		CommitteeID: committeeID,
		SeatNumber:  seatNumber,
		PrimaryDate: req.PrimaryDate,
		Candidates:  req.Candidates,
	})
	if err != nil {
		h.fail(w, r, "record petition", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleDiscrepancy handles POST /committees/{committeeID}/discrepancies.
func (h *Handler) HandleDiscrepancy(w http.ResponseWriter, r *http.Request) {
	committeeID, ok := pathID(w, r, "committeeID", id.ParseCommitteeID)
	if !ok {
		return
	}
	req, ok := decode[DiscrepancyRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Memberships.AcceptDiscrepancy(r.Context(), committeeID, req.VoterID)
	if err != nil {
		h.fail(w, r, "accept discrepancy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleCommitteeWeight handles GET /committees/{committeeID}/weight.
func (h *Handler) HandleCommitteeWeight(w http.ResponseWriter, r *http.Request) {
	committeeID, ok := pathID(w, r, "committeeID", id.ParseCommitteeID)
	if !ok {
		return
	}
	res, err := h.svc.Seats.CommitteeDesignationWeight(r.Context(), committeeID)
	if err != nil {
		h.fail(w, r, "committee weight", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSetCommitteeWeight handles PUT /committees/{committeeID}/weight.
func (h *Handler) HandleSetCommitteeWeight(w http.ResponseWriter, r *http.Request) {
	committeeID, ok := pathID(w, r, "committeeID", id.ParseCommitteeID)
	if !ok {
		return
	}
	req, ok := decode[WeightRequest](h, w, r)
	if !ok {
		return
	}
	c, err := h.svc.Seats.SetCommitteeWeight(r.Context(), committeeID, req.LTEDWeight)
	if err != nil {
		h.fail(w, r, "set committee weight", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleCountyWeight handles GET /weights?termId=.
func (h *Handler) HandleCountyWeight(w http.ResponseWriter, r *http.Request) {
	var termID *id.TermID
	if raw := r.URL.Query().Get("termId"); raw != "" {
		parsed, err := id.ParseTermID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid termId"))
			return
		}
		termID = &parsed
	}
	res, err := h.svc.Seats.CountyDesignationWeight(r.Context(), termID)
	if err != nil {
		h.fail(w, r, "county weight", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleEligibilityCheck handles POST /eligibility/check. It never mutates, but
// the caller needs jurisdiction over the committee and admin rights to preview a
// force-add.
func (h *Handler) HandleEligibilityCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[EligibilityRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Eligibility.Check(r.Context(), req.VoterID, req.CommitteeID, req.TermID, eligibility.Options{
		ForceAdd:       req.ForceAdd,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		h.fail(w, r, "eligibility check", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleReconcile handles POST /reconciliations. Admins only.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestcontext.Actor(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "no acting user"))
		return
	}
	if !actor.IsAdmin() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins may run reconciliation"))
		return
	}
	req, ok := decode[ReconcileRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Reconciler.Run(r.Context(), reconcile.Request{
		TermID:         req.TermID,
		SourceReportID: req.SourceReportID,
	})
	if err != nil {
		h.fail(w, r, "reconcile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleReview handles POST /flags/{id}/review.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	flagID, ok := pathID(w, r, "id", id.ParseFlagID)
	if !ok {
		return
	}
	req, ok := decode[ReviewRequest](h, w, r)
	if !ok {
		return
	}
	res, err := h.svc.Reviewer.Review(r.Context(), flagID, req.Decision, req.Notes)
	if err != nil {
		h.fail(w, r, "review flag", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
