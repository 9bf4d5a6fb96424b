package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenCodec_SignAndVerify(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	tok, err := codec.Sign(Claims{Username: "alice", RegisteredClaims: jwtSubject("p-1")}, time.Minute, AccessKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := codec.Verify(tok, AccessKey)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "p-1" || claims.Username != "alice" || claims.Role != AccessKey {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Time.Equal(clock.Now()) {
		t.Fatalf("iat = %s, want %s", claims.IssuedAt.Time, clock.Now())
	}
	if !claims.ExpiresAt.Time.Equal(clock.Now().Add(time.Minute)) {
		t.Fatalf("exp = %s", claims.ExpiresAt.Time)
	}
}

func TestTokenCodec_UniquePerSign(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	a, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Hour, RefreshKey)
	b, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Hour, RefreshKey)
	if a == b {
		t.Fatalf("two tokens signed at the same instant must differ")
	}
}

func TestTokenCodec_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	start := clock.Now()

	tok, err := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, testAccessTTL, AccessKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	clock.Set(start.Add(testAccessTTL - time.Second))
	if _, err := codec.Verify(tok, AccessKey); err != nil {
		t.Fatalf("token must be valid at TTL-1s: %v", err)
	}

	clock.Set(start.Add(testAccessTTL + time.Second))
	if _, err := codec.Verify(tok, AccessKey); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at TTL+1s, got %v", err)
	}
}

func TestTokenCodec_RoleKeysAreSeparate(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	access, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Minute, AccessKey)
	refresh, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Hour, RefreshKey)

	if _, err := codec.Verify(access, RefreshKey); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("access token verified with refresh key: %v", err)
	}
	if _, err := codec.Verify(refresh, AccessKey); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("refresh token verified with access key: %v", err)
	}
}

func TestTokenCodec_Rejects(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	valid, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Minute, AccessKey)
	parts := strings.Split(valid, ".")
	other, _ := codec.Sign(Claims{RegisteredClaims: jwtSubject("p-2")}, time.Minute, AccessKey)
	otherParts := strings.Split(other, ".")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: AccessKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p-1",
			ID:        "jti",
			Issuer:    "tubeauth-test",
			IssuedAt:  jwt.NewNumericDate(clock.Now()),
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Minute)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	extraClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"role":  string(AccessKey),
		"sub":   "p-1",
		"jti":   "jti",
		"iss":   "tubeauth-test",
		"iat":   clock.Now().Unix(),
		"exp":   clock.Now().Add(time.Minute).Unix(),
		"admin": true,
	}).SignedString([]byte("access-secret-for-tests"))
	if err != nil {
		t.Fatalf("sign extra claim: %v", err)
	}

	otherKeys, _ := NewSigningKeys("other-access", "other-refresh")
	foreign, _ := NewTokenCodec(otherKeys, "tubeauth-test", 0, clock.Now).
		Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Minute, AccessKey)

	otherIssuer, _ := NewTokenCodec(mustKeys(t), "someone-else", 0, clock.Now).
		Sign(Claims{RegisteredClaims: jwtSubject("p-1")}, time.Minute, AccessKey)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrTokenMalformed},
		{"garbage", "not.a.jwt", ErrTokenMalformed},
		{"two segments", parts[0] + "." + parts[1], ErrTokenMalformed},
		{"swapped payload", parts[0] + "." + otherParts[1] + "." + parts[2], ErrTokenSignatureInvalid},
		{"tampered signature", parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2])), ErrTokenSignatureInvalid},
		{"alg none", none, ErrTokenSignatureInvalid},
		{"foreign key", foreign, ErrTokenSignatureInvalid},
		{"wrong issuer", otherIssuer, ErrTokenMalformed},
		{"unknown claim", extraClaim, ErrTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Verify(tt.token, AccessKey)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if claims != nil {
				t.Fatalf("claims must not be returned for a rejected token")
			}
		})
	}
}

func TestTokenCodec_SignRequiresSubject(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	if _, err := codec.Sign(Claims{}, time.Minute, AccessKey); err == nil {
		t.Fatalf("expected error for missing subject")
	}
}

func TestNewSigningKeys(t *testing.T) {
	if _, err := NewSigningKeys("same", "same"); !errors.Is(err, ErrInvalidSigningKeys) {
		t.Fatalf("expected ErrInvalidSigningKeys for shared secret, got %v", err)
	}
	if _, err := NewSigningKeys("", "x"); !errors.Is(err, ErrInvalidSigningKeys) {
		t.Fatalf("expected ErrInvalidSigningKeys for empty secret, got %v", err)
	}
}

func mustKeys(t *testing.T) SigningKeys {
	t.Helper()
	keys, err := NewSigningKeys("access-secret-for-tests", "refresh-secret-for-tests")
	if err != nil {
		t.Fatalf("NewSigningKeys: %v", err)
	}
	return keys
}
