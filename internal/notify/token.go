package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Socket token errors.
var (
	ErrBadToken     = errors.New("notify: invalid recipient token")
	ErrTokenExpired = errors.New("notify: recipient token expired")
)

// SignRecipient returns the token a client presents to subscribe to
// recipientID's notifications. The format is "<unix expiry>.<hex mac>",
// where mac is HMAC-SHA256 over "<recipientID>\n<unix expiry>". The
// application backend issues tokens with the same shared secret.
func SignRecipient(secret, recipientID string, expires time.Time) string {
	exp := strconv.FormatInt(expires.Unix(), 10)
	return exp + "." + recipientMAC(secret, recipientID, exp)
}

// VerifyRecipient checks token against recipientID at time now.
func VerifyRecipient(secret, recipientID, token string, now time.Time) error {
	if secret == "" {
		return ErrBadToken
	}
	exp, mac, ok := strings.Cut(token, ".")
	if !ok || exp == "" || mac == "" {
		return ErrBadToken
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrBadToken
	}
	if !hmac.Equal([]byte(mac), []byte(recipientMAC(secret, recipientID, exp))) {
		return ErrBadToken
	}
	if !now.Before(time.Unix(unix, 0)) {
		return ErrTokenExpired
	}
	return nil
}

func recipientMAC(secret, recipientID, exp string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(recipientID))
	m.Write([]byte{'\n'})
	m.Write([]byte(exp))
	return hex.EncodeToString(m.Sum(nil))
}
