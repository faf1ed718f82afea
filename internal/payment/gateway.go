package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Confirmation is the gateway's payment-success callback payload. The
// signature is HMAC-SHA256 over "orderID|paymentID" with the shared
// webhook secret, hex-encoded.
type Confirmation struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	BookingID string `json:"bookingId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

var ErrBadSignature = errors.New("payment signature verification failed")

// Gateway verifies callbacks from the payment provider.
//
// No provider SDK calls outside this package; business logic never sees
// raw gateway payloads.
type Gateway struct {
	secret []byte
}

func NewGateway(secret string) *Gateway {
	return &Gateway{secret: []byte(secret)}
}

// Verify checks the confirmation signature. Constant-time comparison; a
// forged or replayed-with-edits payload fails here before any state moves.
func (g *Gateway) Verify(c Confirmation) error {
	if len(g.secret) == 0 {
		return errors.New("payment gateway secret not configured")
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(c.OrderID + "|" + c.PaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(c.Signature)) {
		return ErrBadSignature
	}
	return nil
}

// Sign produces the signature for a confirmation. Used by tests and by the
// sandbox gateway simulator.
func (g *Gateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
