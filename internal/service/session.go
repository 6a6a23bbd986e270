package service

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/webapp-auth/backend/internal/model"
)

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and verifies HS256 bearer tokens. The first key signs;
// every key is accepted for verification so a secret can be rotated without
// invalidating live sessions.
type SessionIssuer struct {
	keys [][]byte
	ttl  time.Duration
	now  func() time.Time
}

func NewSessionIssuer(secret string, previous []string, ttl time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET_KEY is required", ErrMisconfigured)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: token ttl must be positive", ErrMisconfigured)
	}

	keys := [][]byte{[]byte(secret)}
	for _, key := range previous {
		if key != "" && key != secret {
			keys = append(keys, []byte(key))
		}
	}

	return &SessionIssuer{keys: keys, ttl: ttl, now: time.Now}, nil
}

// Issue returns the signed token with its issue and expiry instants. Both are
// truncated to whole seconds so they match the embedded claims exactly.
func (i *SessionIssuer) Issue(user *model.User) (string, time.Time, time.Time, error) {
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)

	claims := sessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.keys[0])
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return signed, issuedAt, expiresAt, nil
}

func (i *SessionIssuer) Parse(tokenStr string) (*model.AuthUser, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	for _, key := range i.keys {
		claims := &sessionClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			continue
		}
		if err != nil || !token.Valid {
			return nil, ErrUnauthorized
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return nil, ErrUnauthorized
		}
		return &model.AuthUser{
			ID:       userID,
			Username: claims.Username,
			TokenID:  claims.ID,
			Token:    tokenStr,
		}, nil
	}
	return nil, ErrUnauthorized
}

// hashToken is the form stored in sessions.token; the bearer value itself is
// never persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
