package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/putmeon/internal/model"
)

const (
	issuer = "putmeon"

	// DefaultSessionTTL is how long a login stays valid.
	DefaultSessionTTL = 24 * time.Hour
)

// ErrTokenExpired is returned by Parse for a well-formed but expired token.
var ErrTokenExpired = errors.New("auth: session token expired")

// SessionTokens issues and parses signed session tokens.
//
// A token is an HS256 JWT:
//
//	{"sub": "<username>", "jti": "<session id>", "exp": ..., "iss": "putmeon"}
//
// The signature proves the token came from us. It does NOT prove the
// session is still current: the jti must also match the session record
// stored on the user, which is how logout and re-login revoke old tokens
// (see service.AuthService.CheckSession).
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionTokens rejects secrets shorter than 16 characters. A zero ttl
// means DefaultSessionTTL.
func NewSessionTokens(secret string, ttl time.Duration) (*SessionTokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a fresh token for username and returns the session record to
// store alongside the user.
func (s *SessionTokens) Issue(username string) (string, model.Session, error) {
	now := s.now()
	session := model.Session{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second).UTC(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", model.Session{}, fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, session, nil
}

// Parse verifies the signature, issuer and expiry of tokenStr and returns
// the username and session id it carries.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg: none" is
// refused.
func (s *SessionTokens) Parse(tokenStr string) (username, sessionID string, err error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrTokenExpired
		}
		return "", "", fmt.Errorf("auth: invalid session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return "", "", errors.New("auth: session token is missing claims")
	}

	return claims.Subject, claims.ID, nil
}
