// Package flickr provides a client for the subset of the Flickr REST API
// needed to unfurl photo links: photo info, the available sizes, and the
// albums and groups a photo appears in.
//
// For more details, see https://www.flickr.com/services/api/.
package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the endpoint all Flickr REST methods are served from.
const DefaultBaseURL = "https://api.flickr.com/services/rest/"

// Owner identifies the user a photo belongs to.
type Owner struct {
	Name       string
	Username   string
	IconURL    string
	ProfileURL string
}

// Tag is a single raw tag attached to a photo.
type Tag struct {
	Raw string
}

// Size is one rendition of a photo at a fixed pixel size.
type Size struct {
	Label  string
	Width  int
	Height int
	URL    string
}

// Album is a photoset the photo is part of.
type Album struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Group is a group pool the photo has been posted to.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Photo aggregates everything the unfurler needs to know about one photo.
// It is assembled from three independent API calls keyed by the photo ID.
type Photo struct {
	ID          string
	Title       string
	Description string
	Owner       Owner
	Tags        []Tag
	Taken       string
	Posted      string
	Sizes       []Size
	Albums      []Album
	Groups      []Group
}

// Client calls the Flickr REST API. The zero BaseURL and HTTPClient default
// to DefaultBaseURL and http.DefaultClient; tests point BaseURL at an
// httptest server.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a Client authenticated with the given API key.
func New(apiKey string) *Client {
	return &Client{APIKey: apiKey}
}

// GetPhoto fetches info, sizes, and contexts for photoID concurrently and
// assembles them into a single Photo. If any of the three calls fails, the
// whole fetch fails.
func (c *Client) GetPhoto(ctx context.Context, photoID string) (*Photo, error) {
	var (
		info     *photoInfo
		sizes    []Size
		contexts *photoContexts
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = c.getInfo(ctx, photoID)
		return err
	})
	g.Go(func() error {
		var err error
		sizes, err = c.getSizes(ctx, photoID)
		return err
	})
	g.Go(func() error {
		var err error
		contexts, err = c.getContexts(ctx, photoID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.WithMessagef(err, "fetch photo %s", photoID)
	}

	photo := &Photo{
		ID:          photoID,
		Title:       info.Photo.Title.Content,
		Description: info.Photo.Description.Content,
		Owner:       info.Photo.Owner.owner(),
		Taken:       info.Photo.Dates.Taken,
		Posted:      humanPosted(info.Photo.Dates.Posted),
		Sizes:       sizes,
	}
	for _, t := range info.Photo.Tags.Tag {
		photo.Tags = append(photo.Tags, Tag{Raw: t.Raw})
	}
	ownerPath := info.Photo.Owner.pathSegment()
	for _, s := range contexts.Set {
		photo.Albums = append(photo.Albums, Album{
			ID:    s.ID,
			Title: s.Title,
			URL:   fmt.Sprintf("https://www.flickr.com/photos/%s/albums/%s", ownerPath, s.ID),
		})
	}
	for _, p := range contexts.Pool {
		photo.Groups = append(photo.Groups, Group{
			ID:    p.ID,
			Title: p.Title,
			URL:   fmt.Sprintf("https://www.flickr.com/groups/%s/pool/", p.ID),
		})
	}
	return photo, nil
}

// PhotoIDFromURL extracts the photo ID from a shared Flickr photo page URL,
// e.g. https://www.flickr.com/photos/someone/123456/.
func PhotoIDFromURL(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", errors.Wrap(err, "parse photo URL")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 || segments[0] != "photos" || segments[2] == "" {
		return "", errors.Errorf("no photo ID in URL %q", rawurl)
	}
	return segments[2], nil
}

type content struct {
	Content string `json:"_content"`
}

type photoOwner struct {
	NSID       string  `json:"nsid"`
	Username   string  `json:"username"`
	Realname   string  `json:"realname"`
	IconServer string  `json:"iconserver"`
	IconFarm   flexInt `json:"iconfarm"`
	PathAlias  string  `json:"path_alias"`
}

func (o photoOwner) pathSegment() string {
	if o.PathAlias != "" {
		return o.PathAlias
	}
	return o.NSID
}

func (o photoOwner) owner() Owner {
	name := o.Realname
	if name == "" {
		name = o.Username
	}
	iconURL := "https://www.flickr.com/images/buddyicon.gif"
	if o.IconServer != "" && o.IconServer != "0" {
		iconURL = fmt.Sprintf("https://farm%d.staticflickr.com/%s/buddyicons/%s.jpg", int(o.IconFarm), o.IconServer, o.NSID)
	}
	return Owner{
		Name:       name,
		Username:   o.Username,
		IconURL:    iconURL,
		ProfileURL: fmt.Sprintf("https://www.flickr.com/people/%s/", o.pathSegment()),
	}
}

type photoInfo struct {
	Photo struct {
		ID          string     `json:"id"`
		Title       content    `json:"title"`
		Description content    `json:"description"`
		Owner       photoOwner `json:"owner"`
		Dates       struct {
			Posted string `json:"posted"`
			Taken  string `json:"taken"`
		} `json:"dates"`
		Tags struct {
			Tag []struct {
				Raw string `json:"raw"`
			} `json:"tag"`
		} `json:"tags"`
	} `json:"photo"`
}

type photoSizes struct {
	Sizes struct {
		Size []struct {
			Label  string  `json:"label"`
			Width  flexInt `json:"width"`
			Height flexInt `json:"height"`
			Source string  `json:"source"`
		} `json:"size"`
	} `json:"sizes"`
}

type photoContexts struct {
	Set []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"set"`
	Pool []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"pool"`
}

func (c *Client) getInfo(ctx context.Context, photoID string) (*photoInfo, error) {
	var info photoInfo
	if err := c.call(ctx, "flickr.photos.getInfo", photoID, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) getSizes(ctx context.Context, photoID string) ([]Size, error) {
	var res photoSizes
	if err := c.call(ctx, "flickr.photos.getSizes", photoID, &res); err != nil {
		return nil, err
	}
	sizes := make([]Size, 0, len(res.Sizes.Size))
	for _, s := range res.Sizes.Size {
		sizes = append(sizes, Size{
			Label:  s.Label,
			Width:  int(s.Width),
			Height: int(s.Height),
			URL:    s.Source,
		})
	}
	return sizes, nil
}

func (c *Client) getContexts(ctx context.Context, photoID string) (*photoContexts, error) {
	var contexts photoContexts
	if err := c.call(ctx, "flickr.photos.getAllContexts", photoID, &contexts); err != nil {
		return nil, err
	}
	return &contexts, nil
}

func (c *Client) call(ctx context.Context, method, photoID string, out interface{}) error {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("method", method)
	q.Set("api_key", c.APIKey)
	q.Set("photo_id", photoID)
	q.Set("format", "json")
	q.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, method)
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, method)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected status %s", method, resp.Status)
	}

	var stat struct {
		Stat    string `json:"stat"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	body := json.NewDecoder(resp.Body)
	raw := json.RawMessage{}
	if err := body.Decode(&raw); err != nil {
		return errors.Wrap(err, method)
	}
	if err := json.Unmarshal(raw, &stat); err != nil {
		return errors.Wrap(err, method)
	}
	if stat.Stat != "ok" {
		return errors.Errorf("%s: %s (code %d)", method, stat.Message, stat.Code)
	}
	return errors.Wrap(json.Unmarshal(raw, out), method)
}

func humanPosted(posted string) string {
	if posted == "" {
		return ""
	}
	sec, err := strconv.ParseInt(posted, 10, 64)
	if err != nil {
		return posted
	}
	return time.Unix(sec, 0).UTC().Format("January 2, 2006")
}

// flexInt decodes JSON values that Flickr serves inconsistently as either a
// number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
