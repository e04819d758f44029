// Package actor resolves the caller identity at the HTTP edge. The engine
// trusts the token as already authorized for the dossier it touches;
// authorization is an upstream concern. Only resolution lives here.
package actor

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
	"dossierflow/pkg/platform/httputil"
	"dossierflow/pkg/requestcontext"
)

// Claims are the token claims the resolver needs: who is calling and in
// which capacity.
type Claims struct {
	ActorID   string `json:"actor_id"`
	ActorKind string `json:"actor_kind"`
	jwt.RegisteredClaims
}

// Resolver validates bearer tokens and extracts the Actor.
type Resolver struct {
	signingKey []byte
}

func NewResolver(signingKey string) *Resolver {
	return &Resolver{signingKey: []byte(signingKey)}
}

// Resolve parses and validates a token string into an Actor.
func (r *Resolver) Resolve(tokenString string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return r.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	actorID, err := uuid.Parse(claims.ActorID)
	if err != nil || actorID == uuid.Nil {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token carries no actor id")
	}
	kind, err := domain.ParseActorKind(claims.ActorKind)
	if err != nil {
		return domain.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "token carries no actor kind")
	}
	return domain.Actor{ID: actorID, Kind: kind}, nil
}

// Token signs an Actor into a bearer token. Used by tests and tooling; the
// production issuer is the external identity system.
func (r *Resolver) Token(a domain.Actor, registered jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID:          a.ID.String(),
		ActorKind:        string(a.Kind),
		RegisteredClaims: registered,
	})
	return token.SignedString(r.signingKey)
}

// Middleware requires a valid bearer token and stores the resolved actor in
// the request context.
func Middleware(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			raw, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			resolved, err := resolver.Resolve(raw)
			if err != nil {
				if logger != nil {
					logger.WarnContext(req.Context(), "actor resolution failed",
						"request_id", requestcontext.RequestID(req.Context()),
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithActor(req.Context(), resolved)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
