// Package unfurl builds rich link previews for shared Flickr photo URLs and
// publishes them back to Slack.
//
// For more details, see https://api.slack.com/reference/messaging/link-unfurling.
package unfurl

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/pixpand/slack-flickr-unfurl/flickr"
)

const (
	// AccentColor is the sidebar color of every preview attachment.
	AccentColor = "#ff0084"

	// MaxImageWidth and MaxImageHeight bound the preview image Slack is
	// asked to display.
	MaxImageWidth  = 400
	MaxImageHeight = 500

	// CallbackPrefix is the interaction family carried in the attachment's
	// callback ID, joined to the photo ID with a colon.
	CallbackPrefix = "photo_details"

	// ActionAlbums and ActionGroups are the action names of the two buttons
	// attached to previews of photos that appear in albums or groups.
	ActionAlbums = "albums"
	ActionGroups = "groups"
)

// PhotoSource fetches aggregated photo metadata by photo ID.
// *flickr.Client satisfies this.
type PhotoSource interface {
	GetPhoto(ctx context.Context, photoID string) (*flickr.Photo, error)
}

// Publisher issues chat API calls. *slack.Client satisfies this.
type Publisher interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Preview pairs a preview attachment with the shared URL it was built for.
// The URL is only carried to key the batch; it is never part of the
// attachment itself.
type Preview struct {
	URL        string
	Attachment slack.Attachment
}

// Batch keys previews by their shared URL, producing the unfurl payload the
// chat API expects.
func Batch(previews []Preview) map[string]slack.Attachment {
	batch := make(map[string]slack.Attachment, len(previews))
	for _, p := range previews {
		batch[p.URL] = p.Attachment
	}
	return batch
}

// Pipeline turns a link_shared notification into one published batch of
// preview attachments. It holds no per-request state.
type Pipeline struct {
	Source    PhotoSource
	Publisher Publisher
	Logger    zerolog.Logger
}

// Run builds a preview for every link and publishes the whole batch against
// the message identified by channel and messageTS.
//
// Links are processed with full fan-out. The batch is all-or-nothing: the
// first link that fails aborts the publish and its error is returned.
func (p *Pipeline) Run(ctx context.Context, channel, messageTS string, links []string) error {
	previews := make([]Preview, len(links))
	// The group context is canceled once Wait returns; the publish below
	// must ride the caller's context instead.
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			preview, err := p.preview(gctx, link)
			if err != nil {
				return errors.WithMessagef(err, "unfurl %s", link)
			}
			previews[i] = preview
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	_, _, err := p.Publisher.PostMessageContext(ctx, channel,
		slack.MsgOptionUnfurl(messageTS, Batch(previews)))
	if err != nil {
		return errors.Wrap(err, "publish unfurls")
	}
	p.Logger.Info().Str("channel", channel).Int("links", len(links)).Msg("published unfurls")
	return nil
}

func (p *Pipeline) preview(ctx context.Context, link string) (Preview, error) {
	photoID, err := flickr.PhotoIDFromURL(link)
	if err != nil {
		return Preview{}, err
	}
	photo, err := p.Source.GetPhoto(ctx, photoID)
	if err != nil {
		return Preview{}, err
	}
	att, err := Attachment(link, photo)
	if err != nil {
		return Preview{}, err
	}
	return Preview{URL: link, Attachment: att}, nil
}

// Attachment shapes one preview attachment for a photo shared at link.
//
// Metadata fields are emitted in a fixed order and only when non-empty; the
// author block is emitted whole or not at all. The albums/groups buttons and
// the callback ID appear only when the photo is in at least one album or
// group, and each button carries its collection serialized in the action
// value so the callback handler never refetches it.
func Attachment(link string, photo *flickr.Photo) (slack.Attachment, error) {
	best, err := flickr.BestFit(photo.Sizes, MaxImageWidth, MaxImageHeight)
	if err != nil {
		return slack.Attachment{}, errors.WithMessagef(err, "photo %s", photo.ID)
	}

	att := slack.Attachment{
		Fallback:  photo.Title,
		Color:     AccentColor,
		Title:     photo.Title,
		TitleLink: link,
		ImageURL:  best.URL,
	}

	if o := photo.Owner; o.Username != "" && o.IconURL != "" && o.ProfileURL != "" {
		att.AuthorName = o.Name
		att.AuthorIcon = o.IconURL
		att.AuthorLink = o.ProfileURL
	}

	if photo.Description != "" {
		att.Fields = append(att.Fields, slack.AttachmentField{Title: "Description", Value: photo.Description})
	}
	if len(photo.Tags) > 0 {
		raws := make([]string, len(photo.Tags))
		for i, t := range photo.Tags {
			raws[i] = t.Raw
		}
		att.Fields = append(att.Fields, slack.AttachmentField{Title: "Tags", Value: strings.Join(raws, ", ")})
	}
	if photo.Taken != "" {
		att.Fields = append(att.Fields, slack.AttachmentField{Title: "Taken", Value: photo.Taken, Short: true})
	}
	if photo.Posted != "" {
		att.Fields = append(att.Fields, slack.AttachmentField{Title: "Posted", Value: photo.Posted, Short: true})
	}

	if len(photo.Albums) > 0 || len(photo.Groups) > 0 {
		albums, err := json.Marshal(photo.Albums)
		if err != nil {
			return slack.Attachment{}, errors.Wrap(err, "serialize albums")
		}
		groups, err := json.Marshal(photo.Groups)
		if err != nil {
			return slack.Attachment{}, errors.Wrap(err, "serialize groups")
		}
		att.CallbackID = CallbackPrefix + ":" + photo.ID
		att.Actions = []slack.AttachmentAction{
			{Name: ActionAlbums, Text: "Albums", Type: "button", Value: string(albums)},
			{Name: ActionGroups, Text: "Groups", Type: "button", Value: string(groups)},
		}
	}
	return att, nil
}
