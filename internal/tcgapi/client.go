// Package tcgapi is a rate-limited client for the Pokémon TCG REST API.
// Responses are returned as plain nested mappings; downstream ingestion
// depends only on key presence and treats every field as optional.
package tcgapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/errors"
	"github.com/pokedextop/pokedextop-go/internal/httpclient"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.pokemontcg.io/v2"

// defaultRequestTimeout bounds a single API round trip.
const defaultRequestTimeout = 30 * time.Second

// Client queries the TCG API. All requests pass through a shared rate
// limiter; an API key raises the provider-side quota but is optional.
type Client struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a client from settings. httpClient may be nil.
func New(settings *conf.APISettings, httpClient *httpclient.Client) *Client {
	baseURL := DefaultBaseURL
	rps := 10.0
	apiKey := ""
	if settings != nil {
		if settings.BaseURL != "" {
			baseURL = settings.BaseURL
		}
		if settings.RequestsPerSec > 0 {
			rps = settings.RequestsPerSec
		}
		apiKey = settings.APIKey
	}
	if httpClient == nil {
		httpClient = httpclient.New(nil)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logging.ForService("tcgapi"),
	}
}

// apiResponse is the provider's envelope for both single and list endpoints.
type apiResponse struct {
	Data       json.RawMessage `json:"data"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Count      int             `json:"count"`
	TotalCount int             `json:"totalCount"`
}

// get performs one rate-limited API request and decodes the envelope.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, errors.New(err).
			Component("tcgapi").Category(errors.CategoryNetwork).
			NetworkContext(reqURL, defaultRequestTimeout).Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("failed to close response body", "url", reqURL, "error", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("api returned status %d", resp.StatusCode).
			Component("tcgapi").Category(errors.CategoryHTTP).
			Context("url", reqURL).Context("status", resp.StatusCode).Build()
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &envelope, nil
}

// decodeList unpacks the envelope data into payload mappings.
func decodeList(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode item list: %w", err)
	}
	return items, nil
}

// SearchCards runs a Lucene-style card query, e.g. `name:"Pikachu"` or
// `set.id:base1`, returning one page of card payloads.
func (c *Client) SearchCards(ctx context.Context, query string, page, pageSize int) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("q", query)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}

	envelope, err := c.get(ctx, "/cards", q)
	if err != nil {
		return nil, err
	}
	cards, err := decodeList(envelope.Data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("card search", "query", query, "page", page, "count", len(cards))
	return cards, nil
}

// SearchCardsByName searches cards matching a species name.
func (c *Client) SearchCardsByName(ctx context.Context, name string) ([]map[string]any, error) {
	return c.SearchCards(ctx, fmt.Sprintf("name:%q", name), 0, 0)
}

// SearchCardsByPokedexNumber searches cards by national dex number.
func (c *Client) SearchCardsByPokedexNumber(ctx context.Context, number int) ([]map[string]any, error) {
	return c.SearchCards(ctx, fmt.Sprintf("nationalPokedexNumbers:%d", number), 0, 0)
}

// GetCard fetches a single card payload by id.
func (c *Client) GetCard(ctx context.Context, id string) (map[string]any, error) {
	envelope, err := c.get(ctx, "/cards/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var card map[string]any
	if err := json.Unmarshal(envelope.Data, &card); err != nil {
		return nil, fmt.Errorf("failed to decode card: %w", err)
	}
	return card, nil
}

// ListSets fetches all set payloads, following pagination.
func (c *Client) ListSets(ctx context.Context) ([]map[string]any, error) {
	var all []map[string]any
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", "250")
		envelope, err := c.get(ctx, "/sets", q)
		if err != nil {
			return all, err
		}
		sets, err := decodeList(envelope.Data)
		if err != nil {
			return all, err
		}
		if len(sets) == 0 {
			break
		}
		all = append(all, sets...)
		if envelope.TotalCount > 0 && len(all) >= envelope.TotalCount {
			break
		}
	}
	return all, nil
}

// maxSetPages bounds pagination when fetching a large set's cards.
const maxSetPages = 20

// GetCardsFromSet fetches every card of a set, page by page.
func (c *Client) GetCardsFromSet(ctx context.Context, setID string, pageSize int) ([]map[string]any, error) {
	if pageSize <= 0 {
		pageSize = 250
	}
	var all []map[string]any
	for page := 1; page <= maxSetPages; page++ {
		cards, err := c.SearchCards(ctx, "set.id:"+setID, page, pageSize)
		if err != nil {
			return all, err
		}
		if len(cards) == 0 {
			break
		}
		all = append(all, cards...)
	}
	return all, nil
}
