package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrSignatureExpired = errors.New("signature expired")
	ErrSignatureInvalid = errors.New("signature invalid")
)

// SignStream returns hex(HMAC-SHA256(key, "uuid:expires")).
func SignStream(videoUUID string, expires int64, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(videoUUID + ":" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyStreamSignature checks the expires/sig query pair of a signed stream URL.
func VerifyStreamSignature(videoUUID, expiresParam, sig, secretKey string, now time.Time) error {
	if expiresParam == "" || sig == "" {
		return ErrSignatureInvalid
	}
	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return ErrSignatureExpired
	}
	want := SignStream(videoUUID, expires, secretKey)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrSignatureInvalid
	}
	return nil
}
