// Package session issues and verifies stateless bearer tokens.
//
// A token is base64url(payload) + "." + base64url(HMAC-SHA256(payload)), where
// payload is the JSON object {"sub", "iat", "exp"} with millisecond timestamps.
// Verification needs only the shared secret and the current time.
package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 8 * time.Hour

var (
	ErrMalformed = errors.New("session: malformed token")
	ErrSignature = errors.New("session: signature mismatch")
	ErrExpired   = errors.New("session: token expired")
)

var encoding = base64.RawURLEncoding.Strict()

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type payload struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
	method *jwt.SigningMethodHMAC
}

type Option func(*Issuer)

func WithClock(c clock.Clock) Option {
	return func(i *Issuer) {
		i.clock = c
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func NewIssuer(secret string, opts ...Option) *Issuer {
	i := &Issuer{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		clock:  clock.New(),
		method: jwt.SigningMethodHS256,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for userID valid for the configured TTL.
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("session: empty subject")
	}
	now := i.clock.Now()
	expiresAt := now.Add(i.ttl)

	raw, err := json.Marshal(payload{Sub: userID, Iat: now.UnixMilli(), Exp: expiresAt.UnixMilli()})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: encode payload: %w", err)
	}
	encoded := encoding.EncodeToString(raw)

	sig, err := i.method.Sign(encoded, i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign: %w", err)
	}
	return encoded + "." + encoding.EncodeToString(sig), time.UnixMilli(expiresAt.UnixMilli()), nil
}

// Verify checks the signature before looking at the payload. A token is
// expired once now >= exp.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if strings.Count(token, ".") != 1 {
		return nil, ErrMalformed
	}
	encoded, sigText, _ := strings.Cut(token, ".")
	if encoded == "" || sigText == "" {
		return nil, ErrMalformed
	}

	sig, err := encoding.DecodeString(sigText)
	if err != nil {
		return nil, ErrMalformed
	}
	if err := i.method.Verify(encoded, sig, i.secret); err != nil {
		return nil, ErrSignature
	}

	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	p, err := decodePayload(raw)
	if err != nil {
		return nil, err
	}

	if i.clock.Now().UnixMilli() >= p.Exp {
		return nil, ErrExpired
	}

	return &Claims{
		Subject:   p.Sub,
		IssuedAt:  time.UnixMilli(p.Iat),
		ExpiresAt: time.UnixMilli(p.Exp),
	}, nil
}

// decodePayload requires a non-empty string sub and an integral exp.
func decodePayload(raw []byte) (*payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, ErrMalformed
	}

	sub, ok := fields["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrMalformed
	}
	expNum, ok := fields["exp"].(json.Number)
	if !ok {
		return nil, ErrMalformed
	}
	exp, err := expNum.Int64()
	if err != nil {
		return nil, ErrMalformed
	}

	p := &payload{Sub: sub, Exp: exp}
	if iatNum, ok := fields["iat"].(json.Number); ok {
		if iat, err := iatNum.Int64(); err == nil {
			p.Iat = iat
		}
	}
	return p, nil
}
