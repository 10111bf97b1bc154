// Package auth resolves the user behind a chat connection request.
//
// Credentials are HS256 JSON Web Tokens carrying the user ID in an "id"
// claim and a mandatory "exp". A request may present one in an
// "Authorization: Bearer" header or a "token" query parameter. Resolution
// never fails: a missing or invalid credential yields Anonymous.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

// Anonymous is the user ID given to connections without a valid credential.
const Anonymous = "anonymous"

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrNoSecret     = errors.New("jwt secret not configured")
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptyUserID  = errors.New("user id must not be empty")
)

// Claims is the token payload.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Verifier checks and issues tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	log    zerolog.Logger
	now    func() time.Time
}

// NewVerifier creates a verifier. An empty secret makes every token invalid.
func NewVerifier(secret string, logger zerolog.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		log:    logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// Verify validates a token and returns the user ID it carries.
func (v *Verifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}

	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing id", ErrInvalidToken)
	}
	return claims.ID, nil
}

// Issue signs a token for userID that expires after ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	if userID == "" {
		return "", ErrEmptyUserID
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := v.now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// UserID resolves the user for a connection request: bearer header first,
// then the token query parameter, then Anonymous.
func (v *Verifier) UserID(r *http.Request) string {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return Anonymous
	}

	userID, err := v.Verify(token)
	if err != nil {
		v.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("credential rejected, continuing as anonymous")
		return Anonymous
	}
	return userID
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
