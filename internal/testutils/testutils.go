package testutils

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// AddSignature signs body with key the way Slack signs webhook deliveries and
// sets the resulting signature headers on h.
func AddSignature(h http.Header, key, body []byte, timestamp time.Time) error {
	hash := hmac.New(sha256.New, key)
	strTime := strconv.FormatInt(timestamp.Unix(), 10)
	if _, err := hash.Write([]byte(fmt.Sprintf("v0:%s:", strTime))); err != nil {
		return err
	}
	if _, err := hash.Write(body); err != nil {
		return err
	}
	signature := hex.EncodeToString(hash.Sum(nil))

	h.Set(HeaderTimestamp, strTime)
	h.Set(HeaderSignature, "v0="+signature)
	return nil
}

// SignedRequest builds a POST request to target carrying body, signed with
// signingSecret as of now.
func SignedRequest(signingSecret, target, contentType string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if err := AddSignature(req.Header, []byte(signingSecret), body, time.Now()); err != nil {
		return nil, err
	}
	return req, nil
}
