package utils // package utils provides helpers for token creation, hashing and random codes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/training-portal/internal/model"
)

// Token verification errors.  Handlers map both to 401 and ask the client
// to re-authenticate.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// refreshTokenBytes is the amount of randomness in a refresh token
// (48 bytes -> 96 hex chars).
const refreshTokenBytes = 48

// Claims is the payload of an access token.  Role travels as its integer
// tier for compatibility with the portal's other clients.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uint64     `json:"user_id"`
	Role      model.Role `json:"role"`
	CompanyID uint64     `json:"company_id"`
	LoginCode string     `json:"login_code"`
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is the raw opaque token handed to the client.  Exp is nil
// when refresh tokens are configured not to expire.
type RefreshToken struct {
	Raw string
	Exp *time.Time
}

// Issuer mints and verifies tokens.  now is injectable so expiry can be
// tested without sleeping.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer returns an Issuer signing with secret.  A zero refreshTTL
// produces refresh tokens without expiry.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the issuer's time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Now returns the issuer's current time.
func (i *Issuer) Now() time.Time { return i.now() }

// IssueAccessToken builds and signs an HS256 JWT for the account.
func (i *Issuer) IssueAccessToken(acc model.AccountView) (AccessToken, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(acc.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		UserID:    acc.UserID,
		Role:      acc.Role,
		CompanyID: acc.CompanyID,
		LoginCode: acc.LoginCode,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("signing access token: %w", err)
	}
	// NumericDate truncates to seconds; report what the token actually says.
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// IssueRefreshToken returns a fresh opaque refresh token.
func (i *Issuer) IssueRefreshToken() (RefreshToken, error) {
	raw, err := RandomHex(refreshTokenBytes)
	if err != nil {
		return RefreshToken{}, fmt.Errorf("generating refresh token: %w", err)
	}
	rt := RefreshToken{Raw: raw}
	if i.refreshTTL > 0 {
		exp := i.now().Add(i.refreshTTL)
		rt.Exp = &exp
	}
	return rt, nil
}

// VerifyAccessToken checks the signature (HS256 only) and then compares
// exp against the issuer's clock explicitly.  The library's own expiry
// check runs against the same clock; the explicit comparison also rejects
// tokens that carry no exp at all.
func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if !i.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.UserID == 0 || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidToken)
	}
	return claims, nil
}

// HashRefreshRaw returns the SHA-256 hex digest of a raw refresh token.
// Only the digest is stored, so a leaked table cannot be replayed.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
