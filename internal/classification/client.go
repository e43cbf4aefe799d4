// Package classification fetches the production classification feed: for every machine the
// operator-assigned description of what it is doing and the color the feed shows it in.
package classification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	http_utils "github.com/benmeehan/loomwatch/pkg/httpUtils"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Fetcher returns the current classification of every machine known to the feed. It never
// fails; an unavailable feed yields an empty map.
type Fetcher interface {
	Fetch(ctx context.Context) models.ClassificationMap
}

// feedItem is one element of the feed's JSON array.
type feedItem struct {
	Resource    string  `json:"recurso"`
	Description *string `json:"descricao"`
	Color       string  `json:"corStatus"`
	Code        int     `json:"codigo"`
	Status      int     `json:"status"`
	Awaiting    bool    `json:"aguardandoClassificacao"`
}

// Client fetches the feed over HTTP once per call, without retries.
type Client struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	Logger     zerolog.Logger
}

// NewClient creates a feed client.
func NewClient(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultFeedTimeout
	}
	return &Client{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		Logger:     logger.With().Str("component", "classification").Logger(),
	}
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context) models.ClassificationMap {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := http_utils.GetBody(ctx, c.httpClient, c.url)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("Classification feed unavailable")
		return models.ClassificationMap{}
	}

	entries, err := Parse(body)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("Failed to parse classification feed")
		return models.ClassificationMap{}
	}

	c.Logger.Debug().Int("entries", len(entries)).Msg("Classification feed fetched")
	return entries
}

// Parse decodes a feed document. Keys are upper-cased resource names.
func Parse(data []byte) (models.ClassificationMap, error) {
	var items []feedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("invalid classification feed: %w", err)
	}

	entries := make(models.ClassificationMap, len(items))
	for _, item := range items {
		key := strings.ToUpper(strings.TrimSpace(item.Resource))
		if key == "" {
			continue
		}

		description := constants.ClassificationAwaiting
		if item.Description != nil {
			description = strings.TrimSpace(*item.Description)
		}
		if item.Awaiting {
			description = constants.ClassificationAwaiting
		}

		entries[key] = models.Classification{
			Description: description,
			Color:       ConvertColor(item.Color),
			Code:        item.Code,
			Running:     item.Status == 1,
		}
	}

	return entries, nil
}

// ConvertColor turns the feed's AARRGGBB colors into #RRGGBB. Colors already in #RRGGBB
// form are kept; anything else becomes gray.
func ConvertColor(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case len(raw) == 8 && isHex(raw):
		return "#" + strings.ToUpper(raw[2:])
	case len(raw) == 7 && raw[0] == '#' && isHex(raw[1:]):
		return strings.ToUpper(raw)
	default:
		return constants.ColorGray
	}
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// Disabled is a Fetcher used when no feed is configured.
type Disabled struct{}

// Fetch always returns an empty map.
func (Disabled) Fetch(context.Context) models.ClassificationMap {
	return models.ClassificationMap{}
}
