package server

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"supportdesk/internal/util"
	"supportdesk/pkg/domain"
)

// Verdict is the outcome of the authorization gate.
type Verdict int

const (
	Allow Verdict = iota
	Unauthenticated
	Forbidden
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision is produced for every gated request before its handler runs.
type Decision struct {
	Verdict   Verdict
	Principal domain.Principal
	Reason    string
}

// Role sets accepted by gated routes. A nil set admits any authenticated caller.
var (
	anyRole    []domain.UserRole
	staffRoles = []domain.UserRole{domain.RoleInternal, domain.RoleAdmin}
	adminRoles = []domain.UserRole{domain.RoleAdmin}
)

// Authenticator turns a bearer token into a principal.
type Authenticator interface {
	Authenticate(token string) (domain.Principal, error)
}

// Decide runs the gate for a request: a valid bearer credential must be
// present and, when roles is non-empty, its role must be listed.
func Decide(auth Authenticator, r *http.Request, roles []domain.UserRole) Decision {
	token, ok := bearerToken(r)
	if !ok {
		return Decision{Verdict: Unauthenticated, Reason: "missing_token"}
	}
	p, err := auth.Authenticate(token)
	if err != nil {
		return Decision{Verdict: Unauthenticated, Reason: "invalid_token"}
	}
	if len(roles) > 0 && !slices.Contains(roles, p.Role) {
		return Decision{Verdict: Forbidden, Principal: p, Reason: "role_not_allowed"}
	}
	return Decision{Verdict: Allow, Principal: p}
}

type principalHandler func(http.ResponseWriter, *http.Request, domain.Principal)

// gate wraps next with the authorization check for roles.
func (s *Server) gate(roles []domain.UserRole, next principalHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := Decide(s.app, r, roles)
		switch d.Verdict {
		case Unauthenticated:
			s.audit(r, "support.authorize", d.Verdict.String(), "reason", d.Reason)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case Forbidden:
			s.audit(r, "support.authorize", d.Verdict.String(), "user_id", d.Principal.UserID, "role", d.Principal.Role, "reason", d.Reason)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		ctx := contextWithPrincipal(r.Context(), d.Principal)
		next(w, r.WithContext(ctx), d.Principal)
	})
}

type principalKey struct{}

func contextWithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	logger := util.LoggerFromContext(ctx).With("user_id", p.UserID, "role", p.Role)
	ctx = util.ContextWithLogger(ctx, logger)
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller admitted by the gate.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authHeader[7:])
	if token == "" {
		return "", false
	}
	return token, true
}
