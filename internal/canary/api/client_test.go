package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canaryhome/canary-go/internal/canary"
	"github.com/canaryhome/canary-go/internal/canary/api"
	"github.com/canaryhome/canary-go/internal/canary/session"
)

const testEmail = "ada@example.com"

// newCanaryServer serves the login flow and hands every other path to handler.
func newCanaryServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var logins atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case session.LoginPagePath:
			http.SetCookie(w, &http.Cookie{Name: session.CookieXSRFToken, Value: "xsrf"})
			http.SetCookie(w, &http.Cookie{Name: session.CookieSsesyranac, Value: "sid"})
		case session.LoginAPIPath:
			logins.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"token"}`)
		default:
			assert.Equal(t, "Bearer token", r.Header.Get(session.HeaderAuthorization))
			handler(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &logins
}

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	m, err := session.New(session.Config{
		Username: testEmail,
		Password: "secret",
		BaseURL:  baseURL,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return api.NewClient(api.ClientConfig{
		Session: m,
		Email:   testEmail,
		Logger:  zerolog.Nop(),
	})
}

func TestClient_Me(t *testing.T) {
	server, _ := newCanaryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.MePath, r.URL.Path)
		assert.Equal(t, testEmail, r.URL.Query().Get("email"))
		_, _ = io.WriteString(w, `{"id":3,"first_name":"Ada","last_name":"Lovelace","celsius":false}`)
	})

	customer, err := newClient(t, server.URL).Me(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), customer.ID())
	assert.Equal(t, "Ada", customer.FirstName())
	assert.Equal(t, "Lovelace", customer.LastName())
	assert.False(t, customer.UsesCelsius())
}

func TestClient_Locations(t *testing.T) {
	server, _ := newCanaryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.LocationsPath, r.URL.Path)
		_, _ = io.WriteString(w, `[{"id":1,"name":"Home","resource_uri":"/x","mode":"home","is_private":false,"devices":[{"id":10,"name":"Cam1","device_mode":"armed","online":true,"device_type":"camera"}]}]`)
	})

	locations, err := newClient(t, server.URL).Locations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	require.Len(t, locations[0].Devices(), 1)

	device := locations[0].Devices()[0]
	assert.Equal(t, canary.DeviceArmed, device.Mode())
	assert.True(t, device.IsOnline())
}

func TestClient_Readings(t *testing.T) {
	server, _ := newCanaryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.ReadingsPath, r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("deviceId"))
		assert.Equal(t, "camera", r.URL.Query().Get("type"))
		_, _ = io.WriteString(w, `[{"sensor_type":"temperature","status":"ok","value":21.5},{"sensor_type":"humidity","status":"ok","value":40}]`)
	})

	device := canary.NewDevice(10, "Cam1", canary.DeviceArmed, true, "camera")
	readings, err := newClient(t, server.URL).Readings(context.Background(), device)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, canary.SensorTemperature, readings[0].SensorType())
	assert.InDelta(t, 21.5, readings[0].Value(), 0.0001)
	assert.Equal(t, canary.SensorHumidity, readings[1].SensorType())
}

func TestClient_ReauthIsTransparent(t *testing.T) {
	var calls atomic.Int32
	server, logins := newCanaryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 2 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	client := newClient(t, server.URL)

	_, err := client.Locations(context.Background())
	require.NoError(t, err)
	_, err = client.Locations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(2), logins.Load(), "first use plus one re-login")
}

func TestClient_FinalStatusError(t *testing.T) {
	server, logins := newCanaryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"forbidden"}`)
	})

	_, err := newClient(t, server.URL).Locations(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, canary.ErrStatus)

	var statusErr *canary.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Status)
	assert.Contains(t, statusErr.Body, "forbidden")
	assert.Equal(t, int32(2), logins.Load())
}

func TestClient_StatusErrorBodyTruncated(t *testing.T) {
	server, _ := newCanaryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 10_000))
	})

	_, err := newClient(t, server.URL).Locations(context.Background())

	var statusErr *canary.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Len(t, statusErr.Body, canary.MaxStatusBody)
	assert.Less(t, len(err.Error()), canary.MaxStatusBody+100)
}

func TestClient_ParseErrorNoPartialResult(t *testing.T) {
	server, _ := newCanaryServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Home","resource_uri":"/x","mode":"vacation","is_private":false,"devices":[]}]`)
	})

	locations, err := newClient(t, server.URL).Locations(context.Background())
	assert.Nil(t, locations)

	var parseErr *canary.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "mode", parseErr.Field)
	assert.Equal(t, "vacation", parseErr.Value)
}

// stubGetter answers every call with a fixed response or error.
type stubGetter struct {
	status int
	body   string
	err    error
	paths  []string
}

func (s *stubGetter) Get(_ context.Context, path string, query url.Values, _ http.Header, _ []*http.Cookie) (*http.Response, error) {
	s.paths = append(s.paths, path+"?"+query.Encode())
	if s.err != nil {
		return nil, s.err
	}
	rec := httptest.NewRecorder()
	rec.WriteHeader(s.status)
	_, _ = rec.WriteString(s.body)
	return rec.Result(), nil
}

func TestClient_SessionErrorsPropagate(t *testing.T) {
	authErr := &canary.AuthError{Status: http.StatusUnauthorized, Reason: "login rejected"}
	stub := &stubGetter{err: authErr}

	client := api.NewClient(api.ClientConfig{Session: stub, Email: testEmail})

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, canary.ErrAuth)

	var got *canary.AuthError
	require.True(t, errors.As(err, &got))
	assert.Same(t, authErr, got)
}

func TestClient_RequestShape(t *testing.T) {
	stub := &stubGetter{status: http.StatusOK, body: `[]`}
	client := api.NewClient(api.ClientConfig{Session: stub, Email: testEmail})

	_, err := client.Readings(context.Background(), canary.NewDevice(42, "Flex", canary.DeviceDisarmed, false, "flex"))
	require.NoError(t, err)

	require.Len(t, stub.paths, 1)
	assert.True(t, strings.HasPrefix(stub.paths[0], api.ReadingsPath+"?"))
	assert.Contains(t, stub.paths[0], "deviceId=42")
	assert.Contains(t, stub.paths[0], "type=flex")
}
