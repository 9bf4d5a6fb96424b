package service

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrInvalidSigningKeys    = errors.New("invalid signing keys")
)

// KeyRole selects which secret signs and verifies a token.
type KeyRole string

const (
	AccessKey  KeyRole = "access"
	RefreshKey KeyRole = "refresh"
)

// SigningKeys is the process-wide key material. It is built once and only read afterwards.
type SigningKeys struct {
	access  []byte
	refresh []byte
}

func NewSigningKeys(accessSecret, refreshSecret string) (SigningKeys, error) {
	if accessSecret == "" || refreshSecret == "" {
		return SigningKeys{}, fmt.Errorf("%w: secrets must not be empty", ErrInvalidSigningKeys)
	}
	if accessSecret == refreshSecret {
		return SigningKeys{}, fmt.Errorf("%w: access and refresh secrets must differ", ErrInvalidSigningKeys)
	}
	return SigningKeys{access: []byte(accessSecret), refresh: []byte(refreshSecret)}, nil
}

func (k SigningKeys) secret(role KeyRole) ([]byte, error) {
	switch role {
	case AccessKey:
		return k.access, nil
	case RefreshKey:
		return k.refresh, nil
	default:
		return nil, fmt.Errorf("%w: unknown key role %q", ErrInvalidSigningKeys, role)
	}
}

// Claims is the fixed shape of both token roles.
type Claims struct {
	Role     KeyRole `json:"role"`
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenCodec struct {
	keys   SigningKeys
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewTokenCodec(keys SigningKeys, issuer string, leeway time.Duration, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{keys: keys, issuer: issuer, leeway: leeway, now: now}
}

// Sign создает HS512 signed токен. Role, iat, exp, iss и jti (UUID)
// выставляются здесь, вызывающий задает subject и custom поля.
func (c *TokenCodec) Sign(claims Claims, ttl time.Duration, role KeyRole) (string, error) {
	secret, err := c.keys.secret(role)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrTokenMalformed)
	}

	now := c.now()
	claims.Role = role
	claims.Issuer = c.issuer
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and the claim shape. It never returns claims
// of a token that failed any check.
func (c *TokenCodec) Verify(token string, role KeyRole) (*Claims, error) {
	secret, err := c.keys.secret(role)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	}

	parsed, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", ErrTokenMalformed)
	}
	if claims.Role != role {
		return nil, fmt.Errorf("%w: unexpected role %q", ErrTokenMalformed, claims.Role)
	}
	if err := rejectUnknownClaims(token); err != nil {
		return nil, err
	}
	return claims, nil
}

// rejectUnknownClaims decodes the payload of an already verified token once
// more against the Claims shape and fails on any extra key.
func rejectUnknownClaims(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrTokenMalformed
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var shape Claims
	if err := dec.Decode(&shape); err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	return nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

func jwtSubject(id string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: id}
}

// HashRefreshToken returns the digest that PrincipalStore keeps for a refresh token.
func HashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sameDigest(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
