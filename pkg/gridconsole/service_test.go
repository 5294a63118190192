package gridconsole

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/core"
	"github.com/rzpsarthak13/gridconsole/internal/database"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Store.SeedSize = 30
	cfg.Journal.Sinks = []string{SinkLog, SinkDatabase}
	cfg.Journal.Drainer.PollInterval = 5 * time.Millisecond
	cfg.Database = database.DefaultConfig()
	cfg.Database.Path = ":memory:"
	return cfg
}

func TestNewServiceRequiresConfig(t *testing.T) {
	_, err := NewService(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestServiceJournalsWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewService(ctx, testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Drainer())
	require.NotNil(t, svc.ChangeLog())
	assert.Equal(t, 30, svc.Store().Len())

	runErr := make(chan error, 1)
	go func() { runErr <- svc.Run(ctx) }()
	require.Eventually(t, svc.Drainer().IsRunning, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/demo/tables",
		strings.NewReader(`{"id":4,"key":"status","value":"disabled"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []core.ChangeEvent
	require.Eventually(t, func() bool {
		history, err = svc.ChangeLog().History(ctx, "users", 4, 10)
		return err == nil && len(history) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "status", history[0].Field)
	assert.Equal(t, "invited", history[0].OldValue)
	assert.Equal(t, "disabled", history[0].NewValue)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, svc.Drainer().IsRunning())
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Close())
}

func TestServiceWithoutJournal(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.Enabled = false

	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	assert.Nil(t, svc.Drainer())
	assert.Nil(t, svc.ChangeLog())

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/demo/tables?page=1&pageSize=10")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewServiceFailsOnBadBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "oracle"

	_, err := NewService(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "failed to open change log")
}
