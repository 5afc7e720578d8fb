package handler

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lted/internal/eligibility"
	"lted/internal/flag/reconcile"
	"lted/internal/flag/review"
	"lted/internal/membership/models"
	membershipservice "lted/internal/membership/service"
	"lted/internal/platform/middleware"
	seatmodels "lted/internal/seat/models"
	seatservice "lted/internal/seat/service"
	"lted/internal/storage/memory"
	"lted/internal/storage/storagetest"
	id "lted/pkg/domain"
	"lted/pkg/platform/httputil"
	"lted/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	store     *memory.Store
	fx        *storagetest.Fixture
	committee *seatmodels.Committee
	router    http.Handler
	admin     id.Actor
	leader    id.Actor
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = memory.New()
	s.fx = storagetest.Seed(s.T(), s.store, nil)
	s.committee = s.fx.Committee("Springfield", "7", 3, "10")
	s.admin = testutil.NewActor(id.RoleAdmin)
	s.leader = testutil.NewActor(id.RoleLeader, "Springfield:7")

	memberships, err := membershipservice.New(s.store)
	s.Require().NoError(err)
	job, err := reconcile.New(s.store)
	s.Require().NoError(err)
	reviewer, err := review.New(s.store, memberships)
	s.Require().NoError(err)

	h := New(Services{
		Memberships: memberships,
		Seats:       seatservice.New(s.store),
		Eligibility: eligibility.NewService(s.store, nil),
		Reconciler:  job,
		Reviewer:    reviewer,
	}, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RequestTime, middleware.Actor(slog.New(slog.DiscardHandler)))
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) asAdmin(req *http.Request) *http.Request {
	return testutil.WithActorHeaders(req, s.admin)
}

// asLeader acts as a leader scoped to the given jurisdiction.
func (s *HandlerSuite) asLeader(req *http.Request, jurisdiction string) *http.Request {
	leader := s.leader
	if jurisdiction != "Springfield:7" {
		leader = testutil.NewActor(id.RoleLeader, jurisdiction)
	}
	return testutil.WithActorHeaders(req, leader)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) submit(voterID string) *models.Membership {
	req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships", map[string]any{
		"voterId":     voterID,
		"committeeId": s.committee.ID.String(),
	}), "Springfield:7")
	rr := s.do(req)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	res := testutil.UnmarshalResponse[membershipservice.SubmitResult](s.T(), rr)
	return res.Membership
}

func (s *HandlerSuite) TestSubmitAndAccept() {
	voter := s.fx.Voter("DEM", "21", nil)
	m := s.submit(voter.ID.String())
	s.Equal(models.StatusSubmitted, m.Status)

	rr := s.do(s.asLeader(testutil.NewRequest(s.T(), http.MethodPost, "/memberships/"+m.ID.String()+"/accept"), "Springfield:7"))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	res := testutil.UnmarshalResponse[models.AcceptResult](s.T(), rr)
	s.Equal(models.StatusActive, res.Membership.Status)
	s.Require().NotNil(res.Membership.SeatNumber)
	s.Equal(1, *res.Membership.SeatNumber)

	s.Run("reject after acceptance is a conflict", func() {
		rr := s.do(s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships/"+m.ID.String()+"/reject", map[string]string{"note": "late"})))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("get returns the stored row", func() {
		rr := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/memberships/"+m.ID.String())))
		s.Require().Equal(http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[models.Membership](s.T(), rr)
		s.Equal(models.StatusActive, got.Status)
	})

	s.Run("resign frees the seat", func() {
		rr := s.do(s.asLeader(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/memberships/"+m.ID.String()+"/resign", `{"note":"moving"}`), "Springfield:7"))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		got := testutil.UnmarshalResponse[models.Membership](s.T(), rr)
		s.Equal(models.StatusRemoved, got.Status)
		s.Require().NotNil(got.RemovalReason)
		s.Equal(models.RemovalResigned, *got.RemovalReason)
	})
}

func (s *HandlerSuite) TestSubmitErrors() {
	s.Run("ineligible voter reports reasons", func() {
		voter := s.fx.Voter("REP", "21", nil)
		req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships", map[string]any{
			"voterId":     voter.ID.String(),
			"committeeId": s.committee.ID.String(),
		}), "Springfield:7")
		rr := s.do(req)
		s.Require().Equal(http.StatusBadRequest, rr.Code)
		body := testutil.UnmarshalResponse[httputil.ErrorResponse](s.T(), rr)
		s.Equal("ineligible", body.Error)
		s.Contains(body.Reasons, "PARTY_MISMATCH")
	})

	s.Run("no actor is unauthorized", func() {
		voter := s.fx.Voter("DEM", "21", nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships", map[string]any{
			"voterId":     voter.ID.String(),
			"committeeId": s.committee.ID.String(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("leader outside jurisdiction is forbidden", func() {
		voter := s.fx.Voter("DEM", "21", nil)
		req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships", map[string]any{
			"voterId":     voter.ID.String(),
			"committeeId": s.committee.ID.String(),
		}), "Shelbyville")
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusForbidden, "forbidden")
	})

	s.Run("missing voter id fails validation", func() {
		req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/memberships", map[string]any{
			"committeeId": s.committee.ID.String(),
		}))
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusUnprocessableEntity, "validation_error")
	})

	s.Run("malformed path id is a bad request", func() {
		rr := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodPost, "/memberships/not-a-uuid/accept")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown membership is not found", func() {
		rr := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/memberships/"+uuid.NewString())))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestBulkDecide() {
	a := s.submit(s.fx.Voter("DEM", "21", nil).ID.String())
	b := s.submit(s.fx.Voter("DEM", "21", nil).ID.String())
	meetingID := uuid.NewString()

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/meetings/"+meetingID+"/decisions", map[string]any{
		"decisions": []map[string]string{
			{"membershipId": a.ID.String(), "decision": "accept"},
			{"membershipId": b.ID.String(), "decision": "reject", "note": "not present"},
			{"membershipId": uuid.NewString(), "decision": "accept"},
		},
	}))
	rr := s.do(req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	type bulkResponse struct {
		Results []models.DecisionResult `json:"results"`
	}
	body := testutil.UnmarshalResponse[bulkResponse](s.T(), rr)
	s.Require().Len(body.Results, 3)
	s.Equal(models.OutcomeApplied, body.Results[0].Outcome)
	s.Equal(models.StatusActive, body.Results[0].Status)
	s.Equal(models.OutcomeApplied, body.Results[1].Outcome)
	s.Equal(models.StatusRejected, body.Results[1].Status)
	s.NotEqual(models.OutcomeApplied, body.Results[2].Outcome)

	list := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/meetings/"+meetingID+"/memberships")))
	s.Require().Equal(http.StatusOK, list.Code)
	type listResponse struct {
		Memberships []models.Membership `json:"memberships"`
	}
	s.Len(testutil.UnmarshalResponse[listResponse](s.T(), list).Memberships, 2)

	s.Run("empty decision list fails validation", func() {
		req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/meetings/"+meetingID+"/decisions", map[string]any{"decisions": []any{}}))
		testutil.AssertStatus(s.T(), s.do(req), http.StatusUnprocessableEntity)
	})
}

func (s *HandlerSuite) TestPetitionRejectsBadSeatNumber() {
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/committees/"+s.committee.ID.String()+"/seats/zero/petition",
		map[string]any{"candidates": []any{}}))
	testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestEligibilityCheck() {
	voter := s.fx.Voter("REP", "21", nil)
	req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/eligibility/check", map[string]any{
		"voterId":     voter.ID.String(),
		"committeeId": s.committee.ID.String(),
	}), "Springfield:7")
	rr := s.do(req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	res := testutil.UnmarshalResponse[eligibility.Result](s.T(), rr)
	s.False(res.Eligible)
	s.NotEmpty(res.HardStops)
}

func (s *HandlerSuite) TestEligibilityCheckGuards() {
	voter := s.fx.Voter("REP", "21", nil)
	body := func(force bool) map[string]any {
		out := map[string]any{
			"voterId":     voter.ID.String(),
			"committeeId": s.committee.ID.String(),
		}
		if force {
			out["forceAdd"] = true
			out["overrideReason"] = "party change pending"
		}
		return out
	}

	s.Run("no actor is unauthorized", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/eligibility/check", body(false)))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("forceAdd from a leader is forbidden", func() {
		req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/eligibility/check", body(true)), "Springfield:7")
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusForbidden, "forbidden")
	})

	s.Run("leader outside jurisdiction is forbidden", func() {
		req := s.asLeader(testutil.NewJSONRequest(s.T(), http.MethodPost, "/eligibility/check", body(false)), "Shelbyville")
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusForbidden, "forbidden")
	})

	s.Run("forceAdd from an admin previews the bypass", func() {
		rr := s.do(s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/eligibility/check", body(true))))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[eligibility.Result](s.T(), rr)
		s.True(res.Eligible)
		s.NotEmpty(res.BypassedReasons)
	})
}

func (s *HandlerSuite) TestWeights() {
	rr := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/committees/"+s.committee.ID.String()+"/weight")))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	testutil.AssertJSONHasKey(s.T(), rr, "totalWeight")

	county := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/weights")))
	s.Equal(http.StatusOK, county.Code, county.Body.String())

	bad := s.do(s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/weights?termId=nope")))
	testutil.AssertStatus(s.T(), bad, http.StatusBadRequest)

	negative := s.do(s.asAdmin(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/committees/"+s.committee.ID.String()+"/weight", `{"ltedWeight":"-1"}`)))
	testutil.AssertStatus(s.T(), negative, http.StatusUnprocessableEntity)
}

func (s *HandlerSuite) TestReconcileAndReview() {
	voter := s.fx.Voter("DEM", "21", nil)
	storagetest.Active(s.T(), s.store, voter.ID, s.committee, 1)
	voter.Party = "REP"
	s.fx.SaveVoter(voter)

	s.Run("leaders cannot run reconciliation", func() {
		req := s.asLeader(testutil.NewRequest(s.T(), http.MethodPost, "/reconciliations"), "Springfield:7")
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusForbidden, "forbidden")
	})

	rr := s.do(s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reconciliations", map[string]string{"sourceReportId": "boe-2025-02"})))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	res := testutil.UnmarshalResponse[reconcile.Result](s.T(), rr)
	s.Equal(1, res.Scanned)
	s.Equal(1, res.NewFlags)

	s.Run("unknown flag is not found", func() {
		req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/flags/"+uuid.NewString()+"/review", map[string]string{"decision": "dismiss"}))
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusNotFound, "not_found")
	})

	s.Run("bad decision fails validation", func() {
		req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/flags/"+uuid.NewString()+"/review", map[string]string{"decision": "maybe"}))
		testutil.AssertStatusAndError(s.T(), s.do(req), http.StatusUnprocessableEntity, "validation_error")
	})
}
