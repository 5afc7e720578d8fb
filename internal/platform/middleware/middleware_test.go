package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lted/pkg/domain"
	"lted/pkg/requestcontext"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("propagates the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	})

	t.Run("mints one when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})
}

func TestActor(t *testing.T) {
	var (
		got    id.Actor
		hasAny bool
	)
	h := Actor(discard())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, hasAny = requestcontext.Actor(r.Context())
	}))
	actorID := uuid.NewString()

	t.Run("leader with jurisdictions", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, actorID)
		req.Header.Set(HeaderActorRole, "Leader")
		req.Header.Set(HeaderActorJurisdiction, "Springfield:7, Shelbyville,")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.True(t, hasAny)
		assert.Equal(t, id.RoleLeader, got.Role)
		assert.Equal(t, actorID, got.ID.String())
		assert.Equal(t, []id.Jurisdiction{
			{CityTown: "Springfield", LegDistrict: "7"},
			{CityTown: "Shelbyville"},
		}, got.Jurisdictions)
	})

	t.Run("no role is anonymous", func(t *testing.T) {
		hasAny = false
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, hasAny)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("system role cannot be asserted by a caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, actorID)
		req.Header.Set(HeaderActorRole, "system")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed id is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderActorID, "nope")
		req.Header.Set(HeaderActorRole, "admin")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRecoverAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestID(Logger(logger)(Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/memberships", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "status=500")
	assert.Contains(t, buf.String(), "path=/memberships")
}
