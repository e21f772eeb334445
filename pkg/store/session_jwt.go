package store

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"supportdesk/pkg/domain"
)

const (
	defaultJWTIssuer   = "supportdesk"
	defaultJWTAudience = "supportdesk-api"
	minJWTSecretLength = 16
)

var defaultJWTLeeway = 30 * time.Second

// ErrInvalidToken is returned for tokens that are malformed, expired,
// signed with another key or revoked.
var ErrInvalidToken = errors.New("invalid token")

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type sessionClaims struct {
	Role string `json:"role"`
	// IssuedAtNano is iat at nanosecond precision, compared against
	// per-user revocation cutoffs.
	IssuedAtNano int64 `json:"iat_ns,omitempty"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 JWT tokens carrying the
// user ID as subject and the role as a private claim.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker

	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewJWTSessionStore builds a session store signing with secret.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < minJWTSecretLength {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		secret:   []byte(secret),
		ttl:      ttl,
		revoker:  revoker,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
		now:      time.Now,
	}, nil
}

// NewSession creates a signed JWT for the principal.
func (s *JWTSessionStore) NewSession(p domain.Principal) (string, error) {
	if p.UserID <= 0 || !p.Role.Valid() {
		return "", errors.New("invalid principal")
	}
	now := s.now().UTC()
	claims := sessionClaims{
		Role:         string(p.Role),
		IssuedAtNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates a JWT and returns the principal it was issued for.
func (s *JWTSessionStore) Verify(token string) (domain.Principal, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return domain.Principal{}, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return domain.Principal{}, errors.Join(ErrInvalidToken, errors.New("token subject invalid"))
	}
	role := domain.UserRole(claims.Role)
	if !role.Valid() {
		return domain.Principal{}, errors.Join(ErrInvalidToken, errors.New("token role invalid"))
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return domain.Principal{}, err
		}
		if revoked {
			return domain.Principal{}, errors.Join(ErrInvalidToken, errors.New("token revoked"))
		}
		if userRevoker, ok := s.revoker.(UserTokenRevoker); ok {
			cutoff, err := userRevoker.RevokedAfter(claims.Subject)
			if err != nil {
				return domain.Principal{}, err
			}
			if !cutoff.IsZero() && !claims.issuedAt().After(cutoff) {
				return domain.Principal{}, errors.Join(ErrInvalidToken, errors.New("token revoked for user"))
			}
		}
	}
	return domain.Principal{UserID: userID, Role: role}, nil
}

// DeleteSession revokes the token until it expires. Tokens that no longer
// verify are already unusable and are ignored.
func (s *JWTSessionStore) DeleteSession(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	return s.revoker.Revoke(claims.ID, ttl)
}

// RevokeUserSessions invalidates every token of userID issued at or before since.
func (s *JWTSessionStore) RevokeUserSessions(userID int64, since time.Time) error {
	if s.revoker == nil {
		return nil
	}
	userRevoker, ok := s.revoker.(UserTokenRevoker)
	if !ok {
		return errors.New("session revoker does not support user revocation")
	}
	return userRevoker.RevokeUser(strconv.FormatInt(userID, 10), since)
}

func (s *JWTSessionStore) parseAndVerify(token string) (sessionClaims, error) {
	claims := sessionClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.Join(ErrInvalidToken, errors.New("token missing"))
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil {
		return claims, errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return claims, ErrInvalidToken
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, errors.Join(ErrInvalidToken, errors.New("token jti missing"))
	}
	return claims, nil
}

func (c sessionClaims) issuedAt() time.Time {
	if c.IssuedAtNano > 0 {
		return time.Unix(0, c.IssuedAtNano).UTC()
	}
	return c.IssuedAt.Time.UTC()
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
