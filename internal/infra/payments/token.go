package payments

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"ecostay/internal/app/policies"
	"ecostay/internal/domain/shared/money"
)

var (
	ErrTokenMalformed = errors.New("token: malformed")
	ErrTokenSignature = errors.New("token: signature mismatch")
	ErrTokenExpired   = errors.New("token: expired")
	ErrTokenSecret    = errors.New("token: secret must be 16 to 64 bytes")
)

type tokenClaims struct {
	OrderID  string `json:"o"`
	UserID   string `json:"u"`
	Amount   int64  `json:"a"`
	Currency string `json:"c"`
	IssuedAt int64  `json:"t"`
}

// TokenSigner mints and checks payment confirmation tokens: a JSON claim set
// and its keyed BLAKE2b-256 MAC, both base64url encoded and joined by a dot.
type TokenSigner struct {
	key []byte
	TTL time.Duration
	Now func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) (*TokenSigner, error) {
	if len(secret) < 16 || len(secret) > blake2b.Size {
		return nil, ErrTokenSecret
	}
	return &TokenSigner{key: []byte(secret), TTL: ttl}, nil
}

func (s *TokenSigner) Issue(c policies.Confirmation) (string, error) {
	if c.OrderID == "" {
		return "", fmt.Errorf("%w: order id required", ErrTokenMalformed)
	}
	if c.UserID == "" {
		return "", fmt.Errorf("%w: user id required", ErrTokenMalformed)
	}
	issued := c.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	body, err := json.Marshal(tokenClaims{OrderID: c.OrderID, UserID: c.UserID, Amount: c.Amount.Amount, Currency: c.Amount.Currency, IssuedAt: issued.Unix()})
	if err != nil {
		return "", err
	}
	mac, err := s.sign(body)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(body) + "." + enc.EncodeToString(mac), nil
}

func (s *TokenSigner) Verify(token string) (policies.Confirmation, error) {
	payload, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return policies.Confirmation{}, ErrTokenMalformed
	}
	enc := base64.RawURLEncoding
	body, err := enc.DecodeString(payload)
	if err != nil {
		return policies.Confirmation{}, ErrTokenMalformed
	}
	got, err := enc.DecodeString(sig)
	if err != nil {
		return policies.Confirmation{}, ErrTokenMalformed
	}
	want, err := s.sign(body)
	if err != nil {
		return policies.Confirmation{}, err
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return policies.Confirmation{}, ErrTokenSignature
	}
	var claims tokenClaims
	if err := json.Unmarshal(body, &claims); err != nil || claims.OrderID == "" || claims.UserID == "" {
		return policies.Confirmation{}, ErrTokenMalformed
	}
	issued := time.Unix(claims.IssuedAt, 0).UTC()
	if s.TTL > 0 && s.now().Sub(issued) > s.TTL {
		return policies.Confirmation{}, ErrTokenExpired
	}
	return policies.Confirmation{
		OrderID:  claims.OrderID,
		UserID:   claims.UserID,
		Amount:   money.Money{Amount: claims.Amount, Currency: claims.Currency},
		IssuedAt: issued,
	}, nil
}

func (s *TokenSigner) sign(body []byte) ([]byte, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return nil, err
	}
	h.Write(body)
	return h.Sum(nil), nil
}

func (s *TokenSigner) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var (
	_ policies.ConfirmationIssuer   = (*TokenSigner)(nil)
	_ policies.ConfirmationVerifier = (*TokenSigner)(nil)
)
