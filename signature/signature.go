// Package signature verifies that incoming requests were signed by Slack.
//
// For more details, see https://api.slack.com/authentication/verifying-requests-from-slack.
package signature

import (
	"bytes"
	"io"
	"net/http"

	"github.com/slack-go/slack"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

// Middleware wraps handler and rejects requests whose signature does not
// match the given signing secret. The request body is restored before the
// inner handler runs.
func Middleware(signingSecret string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifier, err := slack.NewSecretsVerifier(r.Header, signingSecret)
		if err != nil {
			// Missing or expired signature headers.
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		tee := io.TeeReader(r.Body, &verifier)
		body, err := io.ReadAll(tee)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := verifier.Ensure(); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		handler.ServeHTTP(w, r)
	})
}
