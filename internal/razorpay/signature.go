package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment computes the checkout signature for an order/payment pair:
// hex(HMAC-SHA256(keySecret, orderID + "|" + paymentID)).
func SignPayment(keySecret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout signature in constant time.
func VerifySignature(keySecret, orderID, paymentID, signature string) bool {
	expected := SignPayment(keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
