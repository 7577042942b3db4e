// Package jwtx signs and verifies the service's HS256 access tokens.
//
// Tokens are compact three-part JWTs signed with a shared symmetric secret.
// The claim set is built from an ordered claim list so that the token layer
// stays agnostic of how claims are produced; repeated claim types (roles)
// collapse into a JSON array.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Overridable per-service via configuration.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// MinSecretBytes is the minimum length of the symmetric signing secret.
// HS256 keys shorter than the hash output weaken the MAC.
const MinSecretBytes = 32

// Well-known claim types used by the claim builders.
const (
	ClaimSubject = "sub"
	ClaimName    = "name"
	ClaimEmail   = "email"
	ClaimTokenID = "jti"
)

// registeredClaimTypes are claim names the codec manages itself. The
// configured role claim type must not shadow any of these.
var registeredClaimTypes = map[string]struct{}{
	"iss": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {},
	ClaimSubject: {}, ClaimTokenID: {}, ClaimName: {}, ClaimEmail: {},
}

// Claim is one (type, value) attribute attached to a token subject.
type Claim struct {
	Type  string
	Value string
}

// Claims is the verified view of an access token.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	TokenID   string
	Roles     []string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// Verifier validates a raw compact token and returns its claims.
// The HTTP layer depends on this interface rather than the concrete codec.
type Verifier interface {
	Verify(raw string) (*Claims, error)
}

// Codec signs and verifies access tokens with one symmetric secret.
type Codec struct {
	secret        []byte
	issuer        string
	audience      string
	roleClaimType string
}

// NewCodec validates the signing configuration up front. A short secret or a
// role claim type that shadows a registered claim is a startup failure, not
// something to discover on the first request.
func NewCodec(secret []byte, issuer, audience, roleClaimType string) (*Codec, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d",
			ErrSecretTooShort, len(secret), MinSecretBytes)
	}
	if roleClaimType == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadRoleClaimType)
	}
	if _, reserved := registeredClaimTypes[roleClaimType]; reserved {
		return nil, fmt.Errorf("%w: %q is a registered claim name", ErrBadRoleClaimType, roleClaimType)
	}

	return &Codec{
		secret:        secret,
		issuer:        issuer,
		audience:      audience,
		roleClaimType: roleClaimType,
	}, nil
}

// RoleClaimType returns the claim type under which roles are embedded. The
// request layer must extract roles using exactly this type.
func (c *Codec) RoleClaimType() string { return c.roleClaimType }

// Sign mints a compact token over the ordered claim list with
// notBefore=now and expires=now+ttl. Repeated claim types become arrays.
func (c *Codec) Sign(claims []Claim, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expires := now.Add(ttl)

	payload := jwt.MapClaims{
		"iss": c.issuer,
		"aud": c.audience,
		"iat": jwt.NewNumericDate(now),
		"nbf": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expires),
	}

	for _, cl := range claims {
		switch existing := payload[cl.Type].(type) {
		case nil:
			payload[cl.Type] = cl.Value
		case string:
			payload[cl.Type] = []string{existing, cl.Value}
		case []string:
			payload[cl.Type] = append(existing, cl.Value)
		}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify parses and validates signature, issuer, audience and time window,
// then projects the payload into Claims. Roles come out of the configured
// role claim type whether stored as a single string or an array.
func (c *Codec) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrSignature, t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	payload, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}

	out := &Claims{
		Subject: stringClaim(payload, ClaimSubject),
		Name:    stringClaim(payload, ClaimName),
		Email:   stringClaim(payload, ClaimEmail),
		TokenID: stringClaim(payload, ClaimTokenID),
		Roles:   stringsClaim(payload, c.roleClaimType),
		Issuer:  stringClaim(payload, "iss"),
	}

	if aud, err := payload.GetAudience(); err == nil {
		out.Audience = aud
	}
	if t, err := payload.GetIssuedAt(); err == nil && t != nil {
		out.IssuedAt = t.Time
	}
	if t, err := payload.GetNotBefore(); err == nil && t != nil {
		out.NotBefore = t.Time
	}
	if t, err := payload.GetExpirationTime(); err == nil && t != nil {
		out.ExpiresAt = t.Time
	}

	return out, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}

func stringClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringsClaim(m jwt.MapClaims, key string) []string {
	switch v := m[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
