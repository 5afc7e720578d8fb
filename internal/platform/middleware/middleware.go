// Package middleware holds the HTTP middleware chain: request id, request
// clock, actor extraction from gateway headers, panic recovery and access logs.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/httputil"
	"lted/pkg/requestcontext"
)

const (
	HeaderRequestID         = "X-Request-ID"
	HeaderActorID           = "X-Actor-ID"
	HeaderActorRole         = "X-Actor-Role"
	HeaderActorJurisdiction = "X-Actor-Jurisdiction"
)

// RequestID propagates the caller's X-Request-ID or mints one, and echoes it
// on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime pins one clock reading for the whole request.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Actor reads the caller identity the upstream gateway asserted. Requests
// without an X-Actor-Role pass through anonymous and are refused by the
// services that need an actor.
func Actor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))
			if role == "" {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := parseActor(role, r.Header.Get(HeaderActorID), r.Header.Get(HeaderActorJurisdiction))
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected actor headers",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseActor(role, rawID, rawJurisdictions string) (id.Actor, error) {
	actor := id.Actor{Role: id.ActorRole(role)}
	if actor.Role != id.RoleAdmin && actor.Role != id.RoleLeader {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "unknown actor role")
	}
	actorID, err := id.ParseActorID(strings.TrimSpace(rawID))
	if err != nil {
		return id.Actor{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid actor id")
	}
	actor.ID = actorID
	for part := range strings.SplitSeq(rawJurisdictions, ",") {
		if j, ok := id.ParseJurisdiction(part); ok {
			actor.Jurisdictions = append(actor.Jurisdictions, j)
		}
	}
	return actor, nil
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					ctx := r.Context()
					logger.ErrorContext(ctx, "panic recovered",
						"request_id", requestcontext.RequestID(ctx),
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger writes one access log line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "http request",
				"request_id", requestcontext.RequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
