// Package interaction handles the button callbacks Slack sends when a user
// asks for more details on a photo preview.
//
// For more details, see https://api.slack.com/legacy/interactive-messages.
package interaction

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/pixpand/slack-flickr-unfurl/httperr"
	"github.com/pixpand/slack-flickr-unfurl/unfurl"
)

// action enumerates the recognized photo-details buttons. Keeping the set
// closed makes the dispatch in Respond an exhaustiveness change when a new
// button is added.
type action int

const (
	actionUnknown action = iota
	actionAlbums
	actionGroups
)

func actionOf(name string) action {
	switch name {
	case unfurl.ActionAlbums:
		return actionAlbums
	case unfurl.ActionGroups:
		return actionGroups
	default:
		return actionUnknown
	}
}

// Handler responds to interaction callbacks synchronously. Each invocation is
// independent; nothing is kept between requests.
type Handler struct {
	VerificationToken string
	Logger            zerolog.Logger
}

type response struct {
	Attachments []slack.Attachment `json:"attachments"`
}

// ServeHTTP parses the form-encoded callback payload, verifies its token, and
// responds with the replacement attachment. Malformed payloads get a 400, a
// token mismatch gets a 404, and any dispatch failure gets a 500.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("payload")
	if payload == "" {
		httperr.Respond(w, httperr.Error(http.StatusBadRequest), false)
		return
	}
	callback := slack.InteractionCallback{}
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		httperr.Respond(w, httperr.Error(http.StatusBadRequest), false)
		return
	}
	if callback.Token != h.VerificationToken {
		// Respond as if the endpoint did not exist; nothing about the
		// attempt is logged.
		httperr.Respond(w, httperr.Error(http.StatusNotFound), false)
		return
	}

	att, err := Respond(&callback)
	if err != nil {
		h.Logger.Error().Err(err).Str("callback_id", callback.CallbackID).Msg("interaction failed")
		httperr.Respond(w, err, false)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response{Attachments: []slack.Attachment{att}}); err != nil {
		h.Logger.Error().Err(err).Msg("write interaction response")
	}
}

// Respond builds the replacement attachment for the pressed button. The
// album or group data is read from the action's value, where the unfurl
// pipeline embedded it; nothing is fetched.
func Respond(callback *slack.InteractionCallback) (slack.Attachment, error) {
	family, _ := splitCallbackID(callback.CallbackID)
	if family != unfurl.CallbackPrefix {
		return slack.Attachment{}, errors.Errorf("unrecognized interaction %q", callback.CallbackID)
	}
	if len(callback.ActionCallback.AttachmentActions) == 0 {
		return slack.Attachment{}, errors.New("callback carries no action")
	}
	if len(callback.OriginalMessage.Attachments) == 0 {
		return slack.Attachment{}, errors.New("callback carries no original attachment")
	}
	pressed := callback.ActionCallback.AttachmentActions[0]

	var label, value string
	switch actionOf(pressed.Name) {
	case actionAlbums:
		label = "Albums"
		value = listTitles(pressed.Value, "This photo isn't in any albums.")
	case actionGroups:
		label = "Groups"
		value = listTitles(pressed.Value, "This photo isn't in any groups.")
	case actionUnknown:
		return slack.Attachment{}, errors.Errorf("unrecognized action %q", pressed.Name)
	}

	att := cloneDisplayable(callback.OriginalMessage.Attachments[0])
	setField(&att, label, value)
	return att, nil
}

func splitCallbackID(id string) (family, photoID string) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// listTitles renders the serialized collection carried in an action value as
// a bulleted list of titles, or the given sentence when the collection is
// empty.
func listTitles(serialized, whenEmpty string) string {
	var entries []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(serialized), &entries); err != nil || len(entries) == 0 {
		return whenEmpty
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = "• " + e.Title
	}
	return strings.Join(lines, "\n")
}

// cloneDisplayable copies only the attachment properties the unfurl pipeline
// emits, dropping whatever Slack injected into the original message.
func cloneDisplayable(att slack.Attachment) slack.Attachment {
	return slack.Attachment{
		Fallback:   att.Fallback,
		Color:      att.Color,
		Title:      att.Title,
		TitleLink:  att.TitleLink,
		ImageURL:   att.ImageURL,
		AuthorName: att.AuthorName,
		AuthorIcon: att.AuthorIcon,
		AuthorLink: att.AuthorLink,
		CallbackID: att.CallbackID,
		Actions:    append([]slack.AttachmentAction(nil), att.Actions...),
		Fields:     append([]slack.AttachmentField(nil), att.Fields...),
	}
}

// setField replaces the field labeled label, or appends it if absent.
// Pressing the same button twice never duplicates the field.
func setField(att *slack.Attachment, label, value string) {
	kept := att.Fields[:0]
	for _, f := range att.Fields {
		if f.Title != label {
			kept = append(kept, f)
		}
	}
	att.Fields = append(kept, slack.AttachmentField{Title: label, Value: value})
}
