package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"
)

const (
	HeaderActorID        = "X-Actor-ID"
	HeaderActorRole      = "X-Actor-Role"
	HeaderActorSignature = "X-Actor-Signature"
)

const ActorKey contextKey = "actor"

// ActorIdentification resolves the calling actor from request headers. When
// secret is set the headers must carry an HMAC-SHA256 signature produced by
// the upstream gateway, see SignActor.
func ActorIdentification(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderActorID))
			roleHeader := r.Header.Get(HeaderActorRole)

			if id == "" && roleHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			role, ok := model.ParseRole(roleHeader)
			if id == "" || !ok || role == model.RoleSystem {
				rejectActor(w, log, r, "Invalid actor headers")
				return
			}

			if secret != "" && !verifyActorSignature(id, role, extractSignature(r), secret) {
				rejectActor(w, log, r, "Invalid actor signature")
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, model.Actor{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor attached by ActorIdentification.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(model.Actor)
	return actor, ok
}

// RequireActor is ActorFromContext for routes that reject anonymous calls.
func RequireActor(ctx context.Context) (model.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return model.Actor{}, apperrors.Unauthorized("X-Actor-ID and X-Actor-Role headers are required")
	}
	return actor, nil
}

// SignActor computes the hex signature expected in X-Actor-Signature.
func SignActor(id string, role model.Role, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id + "|" + string(role)))
	return hex.EncodeToString(mac.Sum(nil))
}

func extractSignature(r *http.Request) string {
	header := r.Header.Get(HeaderActorSignature)
	if signature, found := strings.CutPrefix(header, "sha256="); found {
		return signature
	}
	return header
}

func verifyActorSignature(id string, role model.Role, received, secret string) bool {
	if received == "" {
		return false
	}
	expected := SignActor(id, role, secret)
	return hmac.Equal([]byte(expected), []byte(received))
}

func rejectActor(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Actor identification failed",
		"request_id", RequestIDFromContext(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	writeAppError(w, apperrors.Unauthorized("Unauthorized"))
}
