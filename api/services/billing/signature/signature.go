// Package signature computes and checks the keyed digest the payment gateway
// attaches to a payment confirmation.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// separator sits between payment id and subscription id in the signed message.
// The layout is shared with the gateway and must not change.
const separator = "|"

// Sign returns hex(HMAC-SHA256(secret, paymentID + "|" + subscriptionID)) in lowercase.
func Sign(secret, subscriptionID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(paymentID + separator + subscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
func Verify(secret, subscriptionID, paymentID, claimed string) bool {
	expected := Sign(secret, subscriptionID, paymentID)
	return hmac.Equal([]byte(expected), []byte(claimed))
}

// Verifier binds the shared secret so callers never handle it directly.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) Verifier { return Verifier{secret: secret} }

func (v Verifier) Sign(subscriptionID, paymentID string) string {
	return Sign(v.secret, subscriptionID, paymentID)
}

func (v Verifier) Verify(subscriptionID, paymentID, claimed string) bool {
	return Verify(v.secret, subscriptionID, paymentID, claimed)
}
