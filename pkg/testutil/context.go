package testutil

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lted/internal/platform/middleware"
	id "lted/pkg/domain"
	"lted/pkg/requestcontext"
)

// NewActor mints an actor with a fresh ID. Jurisdictions use the
// "cityTown[:legDistrict]" form.
func NewActor(role id.ActorRole, jurisdictions ...string) id.Actor {
	actor := id.Actor{ID: id.ActorID(uuid.New()), Role: role}
	for _, raw := range jurisdictions {
		if j, ok := id.ParseJurisdiction(raw); ok {
			actor.Jurisdictions = append(actor.Jurisdictions, j)
		}
	}
	return actor
}

// ActorContext returns a context carrying actor and a fixed request time.
func ActorContext(actor id.Actor, now time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	return requestcontext.WithActor(ctx, actor)
}

// WithActorHeaders sets the gateway headers the actor middleware reads.
func WithActorHeaders(req *http.Request, actor id.Actor) *http.Request {
	req.Header.Set(middleware.HeaderActorID, actor.ID.String())
	req.Header.Set(middleware.HeaderActorRole, string(actor.Role))
	if len(actor.Jurisdictions) > 0 {
		parts := make([]string, 0, len(actor.Jurisdictions))
		for _, j := range actor.Jurisdictions {
			if j.LegDistrict == "" {
				parts = append(parts, j.CityTown)
				continue
			}
			parts = append(parts, j.CityTown+":"+j.LegDistrict)
		}
		req.Header.Set(middleware.HeaderActorJurisdiction, strings.Join(parts, ","))
	}
	return req
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
