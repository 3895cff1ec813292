package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pixpand/slack-flickr-unfurl/internal/server"
	"github.com/pixpand/slack-flickr-unfurl/internal/testutils"
)

const signingSecret = "THE_SECRET"

type fakeUnfurler struct {
	err      error
	channels []string
	ts       []string
	links    [][]string
	ctxErrs  []error
}

func (f *fakeUnfurler) Run(ctx context.Context, channel, messageTS string, links []string) error {
	f.channels = append(f.channels, channel)
	f.ts = append(f.ts, messageTS)
	f.links = append(f.links, links)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

var _ = Describe("Server", func() {
	var (
		unfurler     *fakeUnfurler
		interactions http.HandlerFunc
		handler      http.Handler
	)

	BeforeEach(func() {
		unfurler = &fakeUnfurler{}
		interactions = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}
		s := &server.Server{
			SigningSecret: signingSecret,
			Unfurler:      unfurler,
			Interactions:  interactions,
			Logger:        zerolog.Nop(),
		}
		handler = s.Handler()
	})

	post := func(path, contentType, body string) *http.Response {
		req, err := testutils.SignedRequest(signingSecret, "http://example.com"+path, contentType, []byte(body))
		Expect(err).NotTo(HaveOccurred())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result()
	}

	Describe("POST /events", func() {
		Context("with a url_verification event", func() {
			It("echoes the challenge", func() {
				resp := post("/events", "application/json",
					`{"token":"t","challenge":"3eZbrw1aBm2rZgRNFdxV","type":"url_verification"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON(`{"challenge":"3eZbrw1aBm2rZgRNFdxV"}`))
			})
		})

		Context("with a link_shared event", func() {
			event := `{
				"token": "t",
				"team_id": "T1",
				"api_app_id": "A1",
				"type": "event_callback",
				"event": {
					"type": "link_shared",
					"channel": "C123",
					"user": "U1",
					"message_ts": "1593.0001",
					"links": [
						{"domain": "flickr.com", "url": "https://www.flickr.com/photos/bees/123456/"},
						{"domain": "flickr.com", "url": "https://www.flickr.com/photos/bees/654321/"}
					]
				}
			}`

			It("hands every shared link to the unfurler and acknowledges", func() {
				resp := post("/events", "application/json", event)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(unfurler.channels).To(Equal([]string{"C123"}))
				Expect(unfurler.ts).To(Equal([]string{"1593.0001"}))
				Expect(unfurler.links).To(Equal([][]string{{
					"https://www.flickr.com/photos/bees/123456/",
					"https://www.flickr.com/photos/bees/654321/",
				}}))
			})

			It("acknowledges even when the unfurler fails", func() {
				unfurler.err = errors.New("flickr is down")
				resp := post("/events", "application/json", event)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})

			It("unfurls with a live context even when the delivery is torn down", func() {
				req, err := testutils.SignedRequest(signingSecret, "http://example.com/events",
					"application/json", []byte(event))
				Expect(err).NotTo(HaveOccurred())
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				req = req.WithContext(ctx)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				Expect(w.Result().StatusCode).To(Equal(http.StatusOK))
				Expect(unfurler.ctxErrs).To(Equal([]error{nil}))
			})
		})

		Context("with an event type the app does not subscribe to", func() {
			It("acknowledges without unfurling", func() {
				resp := post("/events", "application/json", `{
					"token": "t",
					"team_id": "T1",
					"api_app_id": "A1",
					"type": "event_callback",
					"event": {"type": "reaction_added", "user": "U1", "reaction": "thumbsup"}
				}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(unfurler.channels).To(BeEmpty())
			})
		})

		Context("with an unknown envelope type", func() {
			It("responds with BadRequest", func() {
				resp := post("/events", "application/json", `{"type":"mystery"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		Context("with an unsigned request", func() {
			It("responds with BadRequest", func() {
				req, err := http.NewRequest(http.MethodPost, "http://example.com/events", nil)
				Expect(err).NotTo(HaveOccurred())
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				Expect(w.Result().StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("POST /messages", func() {
		It("routes signed requests to the interaction handler", func() {
			resp := post("/messages", "application/x-www-form-urlencoded", "payload=%7B%7D")
			Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
		})
	})
})
