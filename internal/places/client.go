// Package places implements the Google Places Web Service client used to
// search, geocode and enrich venue candidates, plus the type filtering rules
// applied to raw results before ranking.
package places

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

	gocache "github.com/patrickmn/go-cache"

	"github.com/iae-bsb/iae-bot/internal/models"
)

// DefaultSearchRadiusM is the nearby-search radius in meters.
const DefaultSearchRadiusM = 5000

// detailsCacheTTL is how long a place-details record stays cached.
const detailsCacheTTL = 24 * time.Hour

// detailsFields lists the Place Details fields requested from the API.
const detailsFields = "name,formatted_phone_number,international_phone_number,website,url,formatted_address,vicinity,opening_hours,price_level,rating,user_ratings_total,types,reviews,geometry"

// Opts holds configuration for the Places client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	RadiusM    int
}

// Option configures the Places client.
type Option func(*Opts)

// WithAPIKey sets the Google Maps API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithRadiusM overrides the nearby-search radius in meters.
func WithRadiusM(radius int) Option {
	return func(o *Opts) { o.RadiusM = radius }
}

// Client talks to the Google Maps Web Service JSON endpoints.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	radiusM      int
	detailsCache *gocache.Cache
}

// NewClient creates a Places client with the given options.
func NewClient(opts ...Option) (*Client, error) {
	o := Opts{
		BaseURL: "https://maps.googleapis.com",
		RadiusM: DefaultSearchRadiusM,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("places: API key is required")
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:       o.APIKey,
		baseURL:      o.BaseURL,
		httpClient:   o.HTTPClient,
		radiusM:      o.RadiusM,
		detailsCache: gocache.New(detailsCacheTTL, time.Hour),
	}, nil
}

type nearbyResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []models.Place `json:"results"`
}

// NearbySearch runs one nearby search per provider type of the venue kind
// and merges the results, deduped by place_id. A place tagged only as a pub
// or cafe never shows up under the primary bar/restaurant type, so every
// allowed type gets its own query.
func (c *Client) NearbySearch(ctx context.Context, lat, lng float64, venue models.Venue, opts models.SearchOptions) ([]models.Place, error) {
	var merged []models.Place
	for _, placeType := range allowedTypes[venue] {
		results, err := c.nearbyByType(ctx, lat, lng, placeType, opts)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}
	merged = Dedup(merged)
	slog.Debug("places.NearbySearch results", "venue", venue, "keyword", opts.Keyword, "count", len(merged))
	return merged, nil
}

func (c *Client) nearbyByType(ctx context.Context, lat, lng float64, placeType string, opts models.SearchOptions) ([]models.Place, error) {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("radius", strconv.Itoa(c.radiusM))
	q.Set("type", placeType)
	if opts.Keyword != "" {
		q.Set("keyword", opts.Keyword)
	}
	if opts.OpenNow {
		q.Set("opennow", "true")
	}
	q.Set("key", c.apiKey)

	var resp nearbyResponse
	if err := c.getJSON(ctx, "/maps/api/place/nearbysearch/json", q, &resp); err != nil {
		return nil, fmt.Errorf("places: nearby search failed: %w", err)
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places: nearby search status %s: %s", resp.Status, resp.ErrorMessage)
	}
	return resp.Results, nil
}

type detailsResponse struct {
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message"`
	Result       models.PlaceDetails `json:"result"`
}

// Details fetches the extended record of a place. Results are cached for 24
// hours; a cached record is returned without hitting the network.
func (c *Client) Details(ctx context.Context, placeID string) (*models.PlaceDetails, error) {
	if placeID == "" {
		return nil, fmt.Errorf("places: place_id is required")
	}
	if cached, found := c.detailsCache.Get(placeID); found {
		slog.Debug("places.Details cache hit", "placeID", placeID)
		return cached.(*models.PlaceDetails), nil
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailsFields)
	q.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, "/maps/api/place/details/json", q, &resp); err != nil {
		return nil, fmt.Errorf("places: details lookup failed: %w", err)
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("places: details status %s: %s", resp.Status, resp.ErrorMessage)
	}
	details := resp.Result
	c.detailsCache.Set(placeID, &details, gocache.DefaultExpiration)
	return &details, nil
}

type findPlaceResponse struct {
	Status       string                  `json:"status"`
	ErrorMessage string                  `json:"error_message"`
	Candidates   []models.PlaceCandidate `json:"candidates"`
}

// FindPlace resolves a free-text venue name to its best Places match.
// Returns nil when nothing matched.
func (c *Client) FindPlace(ctx context.Context, input string) (*models.PlaceCandidate, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id,name,formatted_address,geometry")
	q.Set("key", c.apiKey)

	var resp findPlaceResponse
	if err := c.getJSON(ctx, "/maps/api/place/findplacefromtext/json", q, &resp); err != nil {
		return nil, fmt.Errorf("places: find place failed: %w", err)
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Candidates) == 0 {
		return nil, nil
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("places: find place status %s: %s", resp.Status, resp.ErrorMessage)
	}
	return &resp.Candidates[0], nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string          `json:"formatted_address"`
		Geometry         models.Geometry `json:"geometry"`
	} `json:"results"`
}

// GeocodeText resolves a free-text location (neighborhood, address, landmark)
// to coordinates. Returns nil when nothing matched.
func (c *Client) GeocodeText(ctx context.Context, text string) (*models.GeocodedPlace, error) {
	q := url.Values{}
	q.Set("address", text)
	q.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "/maps/api/geocode/json", q, &resp); err != nil {
		return nil, fmt.Errorf("places: geocode failed: %w", err)
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		return nil, nil
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("places: geocode status %s: %s", resp.Status, resp.ErrorMessage)
	}
	best := resp.Results[0]
	return &models.GeocodedPlace{
		Lat:  best.Geometry.Location.Lat,
		Lng:  best.Geometry.Location.Lng,
		Name: best.FormattedAddress,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
