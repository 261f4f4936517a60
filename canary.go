// Package canary is a client for the Canary home-security cloud API.
//
// A Client logs in with an account's username and password, then lists the
// account's locations, devices and sensor readings. An expired session is
// detected from a 4xx response and renewed transparently, once per call, so any
// call may return an *AuthError.
package canary

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	core "github.com/canaryhome/canary-go/internal/canary"
	"github.com/canaryhome/canary-go/internal/canary/api"
	"github.com/canaryhome/canary-go/internal/canary/session"
	"github.com/canaryhome/canary-go/internal/provider/resilience"
	"github.com/canaryhome/canary-go/internal/telemetry"
)

// Re-export core types for external use.
type (
	// Customer is the account holder.
	Customer = core.Customer
	// Location is a monitored site and its devices.
	Location = core.Location
	// Device is a single Canary unit.
	Device = core.Device
	// Reading is one sensor sample for a device.
	Reading = core.Reading
	// LocationMode is away, home or night.
	LocationMode = core.LocationMode
	// DeviceMode is disarmed, armed or privacy.
	DeviceMode = core.DeviceMode
	// SensorType is air_quality, humidity or temperature.
	SensorType = core.SensorType
	// State is the credential material held after login.
	State = session.State
	// HTTPDoer executes HTTP requests.
	HTTPDoer = resilience.HTTPDoer
	// CircuitBreakerConfig tunes the optional breaker on the built-in transport.
	CircuitBreakerConfig = resilience.CircuitBreakerConfig
	// TelemetryConfig configures OTLP export.
	TelemetryConfig = telemetry.Config
	// TelemetryProvider must be shut down when telemetry is no longer needed.
	TelemetryProvider = telemetry.Provider

	ConnectionError = core.ConnectionError
	AuthError       = core.AuthError
	ParseError      = core.ParseError
	StatusError     = core.StatusError
)

// Enum values.
const (
	LocationAway  = core.LocationAway
	LocationHome  = core.LocationHome
	LocationNight = core.LocationNight

	DeviceDisarmed = core.DeviceDisarmed
	DeviceArmed    = core.DeviceArmed
	DevicePrivacy  = core.DevicePrivacy

	SensorAirQuality  = core.SensorAirQuality
	SensorHumidity    = core.SensorHumidity
	SensorTemperature = core.SensorTemperature
)

// Sentinel errors for errors.Is.
var (
	ErrConnection = core.ErrConnection
	ErrAuth       = core.ErrAuth
	ErrParse      = core.ErrParse
	ErrStatus     = core.ErrStatus
)

// DefaultTimeout is applied to every HTTP call unless Config.Timeout is set.
const DefaultTimeout = resilience.DefaultTimeout

// Config holds client settings. Only Username and Password are required.
type Config struct {
	Username string
	Password string

	// Timeout applies to every HTTP call (default: 10s).
	Timeout time.Duration

	// BaseURL overrides the service host, mainly for tests.
	BaseURL string

	// HTTPClient replaces the built-in transport. Timeout is then up to it.
	HTTPClient HTTPDoer

	// CircuitBreaker enables a breaker on the built-in transport. It opens
	// only on transport errors. Nil sends every call.
	CircuitBreaker *CircuitBreakerConfig

	// Logger receives debug events. Zero value logs nothing.
	Logger zerolog.Logger
}

// Client is a Canary API client. It is meant for use from one goroutine at a time.
type Client struct {
	session *session.Manager
	api     *api.Client
}

// New creates a client. It does not contact the service.
func New(cfg Config) (*Client, error) {
	m, err := session.New(session.Config{
		Username:       cfg.Username,
		Password:       cfg.Password,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		HTTPClient:     cfg.HTTPClient,
		CircuitBreaker: cfg.CircuitBreaker,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		session: m,
		api: api.NewClient(api.ClientConfig{
			Session: m,
			Email:   cfg.Username,
			Logger:  cfg.Logger,
		}),
	}, nil
}

// Login performs the login handshake now instead of on first use.
func (c *Client) Login(ctx context.Context) error {
	_, err := c.session.Login(ctx)
	return err
}

// Authenticated reports whether a login has succeeded.
func (c *Client) Authenticated() bool {
	return c.session.Authenticated()
}

// Session returns the current credentials, if any.
func (c *Client) Session() (State, bool) {
	return c.session.State()
}

// Me fetches the account holder's profile.
func (c *Client) Me(ctx context.Context) (Customer, error) {
	return c.api.Me(ctx)
}

// Locations lists the account's locations with their devices.
func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	return c.api.Locations(ctx)
}

// Readings lists sensor readings for a device.
func (c *Client) Readings(ctx context.Context, device Device) ([]Reading, error) {
	return c.api.Readings(ctx, device)
}

// NewDevice builds a Device handle from a known id and type, for Readings.
func NewDevice(id int64, name string, mode DeviceMode, online bool, deviceType string) Device {
	return core.NewDevice(id, name, mode, online, deviceType)
}

// DefaultCircuitBreakerConfig returns breaker settings that open after 5
// consecutive transport errors and let a trial request through after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return resilience.DefaultCircuitBreakerConfig(session.ProviderName)
}

// InitTelemetry installs OTLP exporters for the client's traces and metrics.
func InitTelemetry(ctx context.Context, cfg TelemetryConfig) (*TelemetryProvider, error) {
	return telemetry.Init(ctx, cfg)
}
