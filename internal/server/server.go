// Package server mounts the two inbound Slack endpoints behind signature
// verification and routes Events API envelopes to the unfurl pipeline.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack/slackevents"

	"github.com/pixpand/slack-flickr-unfurl/httperr"
	"github.com/pixpand/slack-flickr-unfurl/signature"
)

// Unfurler publishes previews for the links shared in a message.
// *unfurl.Pipeline satisfies this.
type Unfurler interface {
	Run(ctx context.Context, channel, messageTS string, links []string) error
}

// Server wires the inbound HTTP surface.
type Server struct {
	SigningSecret string
	Unfurler      Unfurler
	Interactions  http.Handler
	Logger        zerolog.Logger
}

// Handler mounts the webhook endpoints. Both are wrapped in the signature
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Methods(http.MethodPost).Path("/events").Handler(
		signature.Middleware(s.SigningSecret, http.HandlerFunc(s.handleEvent)))
	r.Methods(http.MethodPost).Path("/messages").Handler(
		signature.Middleware(s.SigningSecret, s.Interactions))
	return r
}

// handleEvent parses the Events API envelope. It answers the one-time
// url_verification handshake and hands link_shared events to the unfurler;
// pipeline failures are logged and never reported back to Slack.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Respond(w, err, false)
		return
	}
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		httperr.Respond(w, httperr.Error(http.StatusBadRequest), false)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		s.handleURLVerification(w, &event)
	case slackevents.CallbackEvent:
		s.handleCallbackEvent(r.Context(), w, &event)
	default:
		httperr.Respond(w, errors.WithMessagef(httperr.Error(http.StatusBadRequest),
			"unknown event type: %s", event.Type), false)
	}
}

func (s *Server) handleURLVerification(w http.ResponseWriter, event *slackevents.EventsAPIEvent) {
	ev, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
	if !ok {
		httperr.Respond(w, errors.Errorf("expected EventsAPIURLVerificationEvent but got %T", event.Data), false)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&slackevents.ChallengeResponse{Challenge: ev.Challenge})
}

func (s *Server) handleCallbackEvent(ctx context.Context, w http.ResponseWriter, event *slackevents.EventsAPIEvent) {
	ev, ok := event.InnerEvent.Data.(*slackevents.LinkSharedEvent)
	if !ok {
		// Not an event this app subscribes to; acknowledge and move on.
		s.Logger.Debug().Str("type", event.InnerEvent.Type).Msg("ignoring event")
		w.WriteHeader(http.StatusOK)
		return
	}

	links := make([]string, len(ev.Links))
	for i, l := range ev.Links {
		links[i] = l.URL
	}
	// Detach from the request context: Slack tears the delivery down as soon
	// as it has its ack, and that must not cancel the publish mid-flight.
	ctx = context.WithoutCancel(ctx)
	if err := s.Unfurler.Run(ctx, ev.Channel, ev.MessageTimeStamp, links); err != nil {
		s.Logger.Error().Err(err).Str("channel", ev.Channel).Msg("unfurl failed")
	}
	// Fire-and-forget from Slack's point of view.
	w.WriteHeader(http.StatusOK)
}
