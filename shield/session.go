package shield

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/coreweb/engine/cmn"
)

// sessionClaims carries the per-domain cookie-jar partition an
// AllowSession rule is scoped to, signed so a tampered claim is
// detectable rather than silently trusted (spec.md §4.8 cookie policy,
// adapted from the teacher's cluster-role JWT idiom).
type sessionClaims struct {
	jwt.RegisteredClaims
	Domain    string `json:"domain"`
	SessionID string `json:"sid"`
}

// SessionSigner mints and verifies AllowSession cookie-partition tokens.
type SessionSigner struct {
	secret []byte
}

func NewSessionSigner(secret []byte) *SessionSigner {
	return &SessionSigner{secret: secret}
}

// Sign issues a token scoping domain's session cookies to sessionID for
// the given lifetime.
func (s *SessionSigner) Sign(domain, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Domain:    domain,
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", cmn.Wrap(err, cmn.KindInternal, "session-token-sign-failed")
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the domain and
// session id it was issued for.
func (s *SessionSigner) Verify(tokenStr string) (domain, sessionID string, err error) {
	token, parseErr := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tk.Header["alg"])
		}
		return s.secret, nil
	})
	if parseErr != nil {
		return "", "", cmn.Wrap(parseErr, cmn.KindInvalidInput, "session-token-invalid")
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", "", cmn.New(cmn.KindInvalidInput, "session-token-invalid")
	}
	return claims.Domain, claims.SessionID, nil
}
