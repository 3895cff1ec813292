package signature_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/pixpand/slack-flickr-unfurl/internal/testutils"
	"github.com/pixpand/slack-flickr-unfurl/signature"
)

var _ = Describe("Signature", func() {
	Describe("Middleware", func() {
		var (
			secret       = "THE_SECRET"
			content      = []byte(`{"body": "this is a request body"}`)
			seenBody     []byte
			innerHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			})
			middleware http.Handler
		)

		BeforeEach(func() {
			seenBody = nil
			middleware = signature.Middleware(secret, innerHandler)
		})

		Context("when the signature is valid", func() {
			It("calls the inner handler with the body restored", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/", bytes.NewReader(content))
				Expect(err).NotTo(HaveOccurred())
				err = testutils.AddSignature(req.Header, []byte(secret), content, time.Now())
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)
				resp := w.Result()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(seenBody).To(Equal(content))
			})
		})

		Context("when the request is not signed", func() {
			It("responds with BadRequest", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/", bytes.NewReader(content))
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)
				resp := w.Result()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(seenBody).To(BeNil())
			})
		})

		Context("when the signature does not match the body", func() {
			It("responds with Unauthorized", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/", bytes.NewReader(content))
				Expect(err).NotTo(HaveOccurred())
				err = testutils.AddSignature(req.Header, []byte(secret), []byte("SOME_OTHER_BODY"), time.Now())
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)
				resp := w.Result()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		Context("when the request is signed with the wrong secret", func() {
			It("responds with Unauthorized", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/", bytes.NewReader(content))
				Expect(err).NotTo(HaveOccurred())
				err = testutils.AddSignature(req.Header, []byte("OOPS_I_MISTOOK_THE_SECRET"), content, time.Now())
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)
				resp := w.Result()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		Context("when the timestamp is too old", func() {
			It("responds with BadRequest", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/", bytes.NewReader(content))
				Expect(err).NotTo(HaveOccurred())
				err = testutils.AddSignature(req.Header, []byte(secret), content, time.Now().Add(-1*time.Hour))
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				middleware.ServeHTTP(w, req)
				resp := w.Result()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})
})
