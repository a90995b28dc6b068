package utils // package utils provides helper functions for token signing, parsing and hashing

import (
    "crypto/rand"  // secure random number generation
    "encoding/hex" // hex encoding for random identifiers
    "errors"       // sentinel errors for token parsing
    "time"         // expiry calculations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// RefreshSubject is the `sub` marker carried by every refresh token.  Access
// tokens leave the subject empty.
const RefreshSubject = "refresh"

var (
    // ErrTokenMalformed covers bad signatures, unexpected algorithms and
    // tokens that cannot be decoded at all.
    ErrTokenMalformed = errors.New("token malformed")
    // ErrTokenExpired is returned when the signature is valid but exp has passed.
    ErrTokenExpired = errors.New("token expired")
)

// Claims is the claim set shared by access and refresh tokens.  UserID is
// always present.  Refresh tokens additionally set Subject to RefreshSubject
// and ID (jti) to a token chain node id.
type Claims struct {
    UserID uint64 `json:"user_id"`
    jwt.RegisteredClaims
}

// IsRefresh reports whether the claims carry the refresh marker.
func (c *Claims) IsRefresh() bool { return c.Subject == RefreshSubject }

// SignToken builds and signs an HS256 JWT.  The expiry is computed from now
// and ttl; iat is set to now.  The returned time is the expiry.
func SignToken(secret []byte, claims Claims, now time.Time, ttl time.Duration) (string, time.Time, error) {
    exp := now.UTC().Add(ttl)
    claims.ExpiresAt = jwt.NewNumericDate(exp)
    claims.IssuedAt = jwt.NewNumericDate(now.UTC())
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString(secret)
    if err != nil {
        return "", time.Time{}, err
    }
    return signed, exp, nil
}

// ParseToken verifies the signature and expiry of raw and returns its claims.
// Only HMAC algorithms are accepted.  now supplies the clock used for the
// expiry check; pass time.Now in production code.
func ParseToken(secret []byte, raw string, now func() time.Time) (*Claims, error) {
    claims := &Claims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        // Reject anything that is not signed with a shared secret.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenMalformed
        }
        return secret, nil
    }, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
    if err != nil {
        if errors.Is(err, jwt.ErrTokenExpired) {
            return nil, ErrTokenExpired
        }
        return nil, ErrTokenMalformed
    }
    if !tok.Valid {
        return nil, ErrTokenMalformed
    }
    return claims, nil
}

// RandomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
