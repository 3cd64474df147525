package console

import (
	"strings"
	"testing"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStatusLoggedIn(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := RenderStatus(Status{
		State:           domain.SessionLoggedIn,
		Username:        "alice",
		IssuedAt:        now.Add(-time.Hour),
		ExpiresAt:       now.Add(13 * time.Hour),
		APIURL:          "http://localhost:3000",
		Transport:       "sse",
		CredentialStore: "/home/alice/.buswork/session.toml",
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "Buswork Console")
	assert.Contains(t, output, "api: http://localhost:3000 (sse)")
	assert.Contains(t, output, "logged in")
	assert.Contains(t, output, "alice")
	assert.Contains(t, output, "10:00")
	assert.Contains(t, output, "in 13 hours (00:00)")
	assert.Contains(t, output, "session.toml")
}

func TestRenderStatusLoggedOutHidesOperator(t *testing.T) {
	output, err := RenderStatus(Status{State: domain.SessionLoggedOut, APIURL: "http://api"}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "logged out")
	assert.NotContains(t, output, "operator:")
	assert.NotContains(t, output, "expires:")
}

func TestRenderStatusExpiredToken(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := RenderStatus(Status{
		State:     domain.SessionLoggedIn,
		Username:  "alice",
		ExpiresAt: now.Add(-2 * time.Hour),
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "expired 09:00")
}

func TestRenderJobsGroupsByPlatform(t *testing.T) {
	output, err := RenderJobs(domain.Catalogue())

	require.NoError(t, err)
	assert.Contains(t, output, "jobs: 8")
	assert.Contains(t, output, "Buswork")
	assert.Contains(t, output, "MercadoLibre")
	assert.Contains(t, output, "ecommerce-2-price-update")
	assert.Contains(t, output, "Update GECOM & Google API")
	assert.Less(t, strings.Index(output, "Buswork"), strings.Index(output, "Atopem's"))
}

func TestRenderJobsEmpty(t *testing.T) {
	output, err := RenderJobs(nil)

	require.NoError(t, err)
	assert.Contains(t, output, "No jobs available.")
}

func TestRenderLogKeepsOrder(t *testing.T) {
	output, err := RenderLog([]domain.LogEntry{
		"Update prices (Buswork) started",
		"Update prices (Buswork): 50% done",
		"Job updateMongo rejected: forbidden",
	})

	require.NoError(t, err)
	first := strings.Index(output, "started")
	second := strings.Index(output, "50% done")
	third := strings.Index(output, "rejected: forbidden")
	assert.True(t, first < second && second < third)
	assert.Contains(t, output, "[==========----------]")
}

func TestRenderLogEmpty(t *testing.T) {
	output, err := RenderLog(nil)

	require.NoError(t, err)
	assert.Contains(t, output, "No activity yet.")
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		entry string
		want  float64
		ok    bool
	}{
		{entry: "Update stock (Atopem's): 25% done", want: 25, ok: true},
		{entry: "Update stock (Atopem's): completed", want: 100, ok: true},
		{entry: "Update stock (Atopem's) started", ok: false},
		{entry: "Job x: 999% done", want: 100, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got, ok := ProgressPercent(tt.entry)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEntryAddsBarForProgress(t *testing.T) {
	assert.Contains(t, FormatEntry("Update MongoDB (Catalog): completed"), "[====================]")
	assert.NotContains(t, FormatEntry("Registered operator bob"), "[")
}
