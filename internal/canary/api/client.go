// Package api exposes the Canary business endpoints on top of a session.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/canaryhome/canary-go/internal/canary"
	"github.com/canaryhome/canary-go/internal/canary/session"
)

const (
	MePath        = "/api/customers/me"
	LocationsPath = "/api/locations"
	ReadingsPath  = "/api/readings"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Getter issues authenticated GETs. *session.Manager implements it.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values, headers http.Header, cookies []*http.Cookie) (*http.Response, error)
}

var _ Getter = (*session.Manager)(nil)

// ClientConfig holds configuration for the resource client.
type ClientConfig struct {
	// Session executes requests with credentials attached (required).
	Session Getter

	// Email is sent to the profile endpoint (required).
	Email string

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches profile, locations and readings.
type Client struct {
	session Getter
	email   string
	logger  zerolog.Logger
}

// NewClient creates a new resource client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		session: cfg.Session,
		email:   cfg.Email,
		logger:  cfg.Logger,
	}
}

// Me fetches the account holder's profile.
func (c *Client) Me(ctx context.Context) (canary.Customer, error) {
	body, err := c.fetch(ctx, MePath, url.Values{"email": {c.email}})
	if err != nil {
		return canary.Customer{}, err
	}
	return canary.ParseCustomer(body)
}

// Locations lists every location on the account with its devices.
func (c *Client) Locations(ctx context.Context) ([]canary.Location, error) {
	body, err := c.fetch(ctx, LocationsPath, nil)
	if err != nil {
		return nil, err
	}

	locations, err := canary.ParseLocations(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("location_count", len(locations)).
		Msg("fetched canary locations")

	return locations, nil
}

// Readings lists the latest sensor readings for a device.
func (c *Client) Readings(ctx context.Context, device canary.Device) ([]canary.Reading, error) {
	query := url.Values{
		"deviceId": {strconv.FormatInt(device.ID(), 10)},
		"type":     {device.DeviceType()},
	}
	body, err := c.fetch(ctx, ReadingsPath, query)
	if err != nil {
		return nil, err
	}

	readings, err := canary.ParseReadings(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int64("device_id", device.ID()).
		Int("reading_count", len(readings)).
		Msg("fetched canary readings")

	return readings, nil
}

// fetch runs an authenticated GET and returns the body of a 2xx response.
func (c *Client) fetch(ctx context.Context, path string, query url.Values) ([]byte, error) {
	resp, err := c.session.Get(ctx, path, query, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &canary.ConnectionError{Op: "GET " + path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, canary.NewStatusError(resp.StatusCode, body)
	}

	return body, nil
}
