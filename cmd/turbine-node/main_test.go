package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/config"
)

// TestGetenv tests the getenv utility function
func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      string
		expected string
	}{
		{
			name:     "environment variable set",
			key:      "TURBINE_TEST_ENV_VAR",
			value:    "test_value",
			def:      "default",
			expected: "test_value",
		},
		{
			name:     "environment variable not set",
			key:      "TURBINE_UNSET_ENV_VAR",
			def:      "default_value",
			expected: "default_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
				defer os.Unsetenv(tt.key)
			}

			result := getenv(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func withFastRetry(t *testing.T) {
	t.Helper()
	old := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = old })
}

// TestPushContact verifies pushes are retried until the entrypoint accepts.
func TestPushContact(t *testing.T) {
	withFastRetry(t)
	var calls atomic.Int32
	pushed := make(chan cluster.PushRequest, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gossip/push" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req cluster.PushRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		pushed <- req
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	self := testContact(0)
	logger, _ := test.NewNullLogger()
	err := pushContact(context.Background(), ts.URL, self, 5, logger)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, self, (<-pushed).Node)
}

// TestPushContactExhausted verifies the last error is returned once every
// attempt failed.
func TestPushContactExhausted(t *testing.T) {
	withFastRetry(t)
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	logger, _ := test.NewNullLogger()
	err := pushContact(context.Background(), ts.URL, testContact(0), 4, logger)
	assert.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

// TestPushContactCanceled verifies a canceled context stops the retries.
func TestPushContactCanceled(t *testing.T) {
	old := retryDelay
	retryDelay = time.Hour
	defer func() { retryDelay = old }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	logger, _ := test.NewNullLogger()
	err := pushContact(ctx, ts.URL, testContact(0), 3, logger)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestPullPeers verifies an entrypoint's directory is merged, including
// the entrypoint itself.
func TestPullPeers(t *testing.T) {
	remote, _ := newTestServer(t, 2)
	ts := httptest.NewServer(remote.routes())
	defer ts.Close()

	local, _ := newTestServer(t, 0)
	merged, err := pullPeers(context.Background(), ts.URL, local.dir)
	require.NoError(t, err)
	assert.Equal(t, 3, merged)
	assert.Equal(t, 3, local.dir.Len())

	merged, err = pullPeers(context.Background(), ts.URL, local.dir)
	require.NoError(t, err)
	assert.Zero(t, merged)

	_, err = pullPeers(context.Background(), "http://127.0.0.1:1", local.dir)
	assert.Error(t, err)
}

// TestGossipLoop verifies two nodes learn about each other through one
// entrypoint.
func TestGossipLoop(t *testing.T) {
	entry, _ := newTestServer(t, 0)
	ts := httptest.NewServer(entry.routes())
	defer ts.Close()

	joiner, _ := newTestServer(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		gossipLoop(ctx, joiner, []string{ts.URL}, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return entry.dir.Len() == 1 && joiner.dir.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gossip loop did not stop")
	}
	assert.Equal(t, joiner.dir.ID(), entry.dir.Peers()[0].ID)
}

// TestGossipLoopNoEntrypoints verifies the loop returns immediately.
func TestGossipLoopNoEntrypoints(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	done := make(chan struct{})
	go func() {
		gossipLoop(context.Background(), srv, nil, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gossip loop without entrypoints should return")
	}
}

// TestNewServer verifies the configured stakes cover the epochs around the
// starting slot.
func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Epoch.SlotsPerEpoch = 100
	cfg.Epoch.LeaderScheduleSlotOffset = 100
	cfg.Epoch.Slot = 250
	id := cluster.NewRandPubkey()
	cfg.Stakes = []config.StakeEntry{{ID: id.String(), Stake: 5}}

	logger, _ := test.NewNullLogger()
	srv, err := newServer(cfg, testContact(0), logger)
	require.NoError(t, err)

	for epoch := cluster.Epoch(2); epoch <= 4; epoch++ {
		table, ok := srv.bank.EpochStakedNodes(epoch)
		require.True(t, ok, "epoch %d", epoch)
		assert.Equal(t, uint64(5), table[id])
	}
	_, ok := srv.bank.EpochStakedNodes(1)
	assert.False(t, ok)
	_, ok = srv.bank.EpochStakedNodes(5)
	assert.False(t, ok)
	assert.Equal(t, 200, srv.fanout)

	cfg.Stakes = append(cfg.Stakes, config.StakeEntry{ID: id.String(), Stake: 1})
	_, err = newServer(cfg, testContact(0), logger)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
