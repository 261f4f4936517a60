package canary_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canaryhome/canary-go"
)

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := canary.New(canary.Config{Username: "ada@example.com"})
	assert.Error(t, err)
}

func TestClient_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "xsrf"})
		http.SetCookie(w, &http.Cookie{Name: "ssesyranac", Value: "sid"})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"access_token":"tok"}`)
	})
	mux.HandleFunc("/api/customers/me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":1,"first_name":"Ada","last_name":"Lovelace","celsius":true}`)
	})
	mux.HandleFunc("/api/locations", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Home","resource_uri":"/x","mode":"away","is_private":false,"devices":[{"id":10,"name":"Cam1","device_mode":"privacy","online":false,"device_type":"camera"}]}]`)
	})
	mux.HandleFunc("/api/readings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("deviceId"))
		_, _ = io.WriteString(w, `[{"sensor_type":"air_quality","status":"normal","value":0.8}]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := canary.New(canary.Config{
		Username: "ada@example.com",
		Password: "secret",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	assert.False(t, client.Authenticated())

	ctx := context.Background()
	require.NoError(t, client.Login(ctx))

	state, ok := client.Session()
	require.True(t, ok)
	assert.Equal(t, "tok", state.BearerToken)
	assert.Equal(t, "xsrf", state.XSRFToken)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.True(t, me.UsesCelsius())

	locations, err := client.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, canary.LocationAway, locations[0].Mode())

	device := locations[0].Devices()[0]
	assert.Equal(t, canary.DevicePrivacy, device.Mode())

	readings, err := client.Readings(ctx, device)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, canary.SensorAirQuality, readings[0].SensorType())
}

func TestClient_ErrorsAreExported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := canary.New(canary.Config{Username: "a", Password: "b", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Locations(context.Background())
	assert.ErrorIs(t, err, canary.ErrAuth)

	var authErr *canary.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusBadGateway, authErr.Status)
}

func TestInitTelemetry_Disabled(t *testing.T) {
	provider, err := canary.InitTelemetry(context.Background(), canary.TelemetryConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))
}
