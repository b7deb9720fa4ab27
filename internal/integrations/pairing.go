package integrations

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PendingThreshold is the message count at which a pending entry earns
// a pairing code offer. It is a fixed constant; no config field
// overrides it.
const PendingThreshold = 3

const pairingCodeTTL = 15 * time.Minute

type pairingClaims struct {
	Platform string `json:"platform"`
	From     string `json:"from"`
	jwt.RegisteredClaims
}

// PairingCoder mints and verifies short-lived HMAC-signed pairing codes.
// This is additive convenience on top of the manual is_authorized /
// upsert_pending / add_authorized contract: add_authorized still works
// with a bare platform/id pair and no code at all.
type PairingCoder struct {
	secret []byte
}

// NewPairingCoder constructs a PairingCoder signing with secret. secret
// must be non-empty; callers typically derive it from daemon config.
func NewPairingCoder(secret []byte) *PairingCoder {
	return &PairingCoder{secret: secret}
}

// Mint issues a pairing code for (platform, from), valid for 15 minutes.
func (c *PairingCoder) Mint(platform, from string) (string, error) {
	claims := pairingClaims{
		Platform: platform,
		From:     from,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(pairingCodeTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a pairing code, returning the platform and
// from it was minted for.
func (c *PairingCoder) Verify(code string) (platform, from string, err error) {
	var claims pairingClaims
	token, err := jwt.ParseWithClaims(code, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", fmt.Errorf("pairing code is not valid")
	}
	return claims.Platform, claims.From, nil
}

// OfferPairingCode mints a code once a pending entry's message count
// crosses PendingThreshold, or reports that no code is due yet.
func (c *PairingCoder) OfferPairingCode(entry PendingEntry) (code string, offered bool, err error) {
	if entry.MessageCount < PendingThreshold {
		return "", false, nil
	}
	code, err = c.Mint(entry.Platform, entry.From)
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}
