package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, TransportSSE, cfg.Transport)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.InitialDelay)
	assert.Equal(t, 10*time.Second, cfg.Reconnect.MaxDelay)
	assert.Equal(t, 5, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, "progressUpdate", cfg.Redis.Channel)
	assert.False(t, cfg.RetainLogOnLogout)
	assert.Equal(t, CredentialStoreAuto, cfg.CredentialStore)
	assert.Equal(t, "http://localhost:3000/events", cfg.EventsURL())
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"BUSWORK_API_URL":                 "https://ops.example.com/",
		"BUSWORK_TRANSPORT":               "REDIS",
		"BUSWORK_REQUEST_TIMEOUT":         "5s",
		"BUSWORK_RECONNECT_MAX_ATTEMPTS":  "2",
		"BUSWORK_RECONNECT_INITIAL_DELAY": "100ms",
		"BUSWORK_RECONNECT_MAX_DELAY":     "1s",
		"BUSWORK_RETAIN_LOG_ON_LOGOUT":    "true",
		"BUSWORK_REDIS_ADDR":              "redis:6380",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://ops.example.com", cfg.APIURL)
	assert.Equal(t, TransportRedis, cfg.Transport)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.Reconnect.MaxAttempts)
	assert.True(t, cfg.RetainLogOnLogout)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "transport", env: map[string]string{"BUSWORK_TRANSPORT": "socketio"}, wantErr: "unsupported transport"},
		{name: "credential store", env: map[string]string{"BUSWORK_CREDENTIAL_STORE": "keyring"}, wantErr: "unsupported credential store"},
		{name: "timeout", env: map[string]string{"BUSWORK_REQUEST_TIMEOUT": "0s"}, wantErr: "request timeout must be positive"},
		{name: "attempts", env: map[string]string{"BUSWORK_RECONNECT_MAX_ATTEMPTS": "-1"}, wantErr: "max attempts"},
		{name: "delays", env: map[string]string{"BUSWORK_RECONNECT_MAX_DELAY": "10ms"}, wantErr: "reconnect delays"},
		{name: "duration syntax", env: map[string]string{"BUSWORK_REQUEST_TIMEOUT": "soon"}, wantErr: "load configuration"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(tc.env))
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
