// Package slack posts auth events to a Slack incoming webhook using Block Kit messages.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/motorcyclejs/authstream/internal/observability/notify"
)

const defaultUsername = "authstream"

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// UserURLPrefix links user IDs to an admin console, e.g. https://console.example/users.
	UserURLPrefix string
}

// Client delivers auth events to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	userLink   *url.URL
	poster     *notify.Poster
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   notify.Fallback(strings.TrimSpace(cfg.Username), defaultUsername),
		userLink:   parseLinkPrefix(cfg.UserURLPrefix),
		poster: notify.NewPoster(notify.PosterConfig{
			Name:       "slack webhook",
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
			Client:     cfg.Client,
		}),
	}, nil
}

// SendAuthEvent posts a formatted message to Slack.
func (c *Client) SendAuthEvent(ctx context.Context, event notify.AuthEvent) error {
	return c.poster.PostJSON(ctx, c.webhookURL, c.buildMessage(event))
}

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type     string     `json:"type"`
	Text     *textObj   `json:"text,omitempty"`
	Fields   []*textObj `json:"fields,omitempty"`
	Elements []*textObj `json:"elements,omitempty"`
}

type textObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) *textObj { return &textObj{Type: "mrkdwn", Text: s} }

// buildMessage renders a headline section, a field grid and a context line with the time.
// Text carries the headline alone for notification previews.
func (c *Client) buildMessage(event notify.AuthEvent) message {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	headline := headlineFor(event)
	blocks := []block{{Type: "section", Text: mrkdwn(headline)}}
	if fields := c.fieldsFor(event); len(fields) > 0 {
		blocks = append(blocks, block{Type: "section", Fields: fields})
	}
	if meta := metadataText(event.Metadata); meta != "" {
		blocks = append(blocks, block{Type: "section", Text: mrkdwn(meta)})
	}
	blocks = append(blocks, block{
		Type:     "context",
		Elements: []*textObj{mrkdwn(occurred.UTC().Format(time.RFC3339))},
	})

	return message{
		Text:     headline,
		Username: c.username,
		Channel:  c.channel,
		Blocks:   blocks,
	}
}

func headlineFor(event notify.AuthEvent) string {
	var title string
	switch event.Kind {
	case notify.EventSignedIn:
		title = "*Signed in*"
	case notify.EventSignedOut:
		title = "*Signed out*"
	case notify.EventFailed:
		title = "*Auth command failed*"
	default:
		title = "*Auth status changed*"
	}
	if event.Code == "" {
		return title
	}
	return title + " `" + event.Code + "`"
}

func (c *Client) fieldsFor(event notify.AuthEvent) []*textObj {
	var fields []*textObj
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, mrkdwn("*"+label+"*\n"+value))
		}
	}

	add("Severity", notify.Fallback(event.Severity, notify.SeverityInfo))
	add("User", c.formatUserValue(event.UID, event.Email))
	add("Provider", escapeSlackText(event.ProviderID))
	if event.IsAnonymous {
		add("Anonymous", "yes")
	}
	add("Error", escapeSlackText(event.Error))
	return fields
}

func metadataText(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %s", escapeSlackText(k), escapeSlackText(metadata[k]))
	}
	return b.String()
}

// formatUserValue renders the user as "<link|email> (uid)" when a user console URL is configured.
func (c *Client) formatUserValue(uid, email string) string {
	rawID := strings.TrimSpace(uid)
	id := escapeSlackText(rawID)
	name := escapeSlackText(strings.TrimSpace(email))

	link := ""
	if rawID != "" {
		link = c.userURL(rawID)
	}

	switch {
	case link != "" && name != "":
		return fmt.Sprintf("<%s|%s> (%s)", link, name, id)
	case link != "":
		return fmt.Sprintf("<%s|%s>", link, id)
	case name != "" && id != "":
		return fmt.Sprintf("%s (%s)", name, id)
	case name != "":
		return name
	default:
		return id
	}
}

func (c *Client) userURL(uid string) string {
	if c.userLink == nil {
		return ""
	}
	return c.userLink.JoinPath(uid).String()
}

func parseLinkPrefix(prefix string) *url.URL {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	u, err := url.Parse(prefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeSlackText(value string) string {
	return slackEscaper.Replace(value)
}
