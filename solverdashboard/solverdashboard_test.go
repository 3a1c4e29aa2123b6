package solverdashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nqueenslab/nqueens-in-golang/paralleltrials"
)

func newTestDashboard(t *testing.T) (*Dashboard, *httptest.Server) {
	t.Helper()

	config := DefaultConfig()
	config.PingInterval = 50 * time.Millisecond

	dashboard, err := NewDashboard(config)
	if err != nil {
		t.Fatalf("Failed to create dashboard: %v", err)
	}

	server := httptest.NewServer(dashboard.Handler())
	t.Cleanup(server.Close)

	return dashboard, server
}

func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.HTTPPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.HTTPPort)
	}
	if config.MaxConnections != 100 {
		t.Errorf("Expected default max connections 100, got %d", config.MaxConnections)
	}
	if config.SendQueueSize != 64 {
		t.Errorf("Expected default send queue size 64, got %d", config.SendQueueSize)
	}
}

func TestNewDashboardValidation(t *testing.T) {
	config := DefaultConfig()
	config.HTTPPort = 0
	if _, err := NewDashboard(config); err == nil {
		t.Error("Expected error for non-positive port")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	config := DefaultConfig()
	config.HTTPPort = 18734

	dashboard, err := NewDashboard(config)
	if err != nil {
		t.Fatalf("Failed to create dashboard: %v", err)
	}

	if err := dashboard.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := dashboard.Start(); err == nil {
		t.Error("Expected error when starting twice")
	}

	if err := dashboard.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := dashboard.Stop(); err == nil {
		t.Error("Expected error when stopping twice")
	}
}

func TestPublishTrialBroadcast(t *testing.T) {
	dashboard, server := newTestDashboard(t)
	conn := dialWebSocket(t, server)

	waitFor(t, time.Second, func() bool {
		return dashboard.GetStatistics().ActiveConnections == 1
	})

	update := TrialUpdate{
		TrialID:    3,
		N:          8,
		Success:    true,
		Iterations: 42,
		Restarts:   1,
		DurationMs: 1.5,
		Board:      []int{4, 6, 0, 2, 7, 5, 3, 1},
	}
	if err := dashboard.PublishTrial(update); err != nil {
		t.Fatalf("PublishTrial failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var received TrialUpdate
	if err := json.Unmarshal(data, &received); err != nil {
		t.Fatalf("Failed to decode broadcast: %v", err)
	}

	if received.TrialID != 3 || received.N != 8 || !received.Success {
		t.Errorf("Unexpected broadcast payload: %+v", received)
	}
	if received.Iterations != 42 || received.Restarts != 1 {
		t.Errorf("Unexpected budget fields: %+v", received)
	}
	if len(received.Board) != 8 {
		t.Errorf("Expected board of length 8, got %v", received.Board)
	}
	if received.Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}

	stats := dashboard.GetStatistics()
	if stats.TrialsPublished != 1 {
		t.Errorf("Expected 1 published trial, got %d", stats.TrialsPublished)
	}
	if stats.MessagesSent != 1 {
		t.Errorf("Expected 1 sent message, got %d", stats.MessagesSent)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	dashboard, _ := newTestDashboard(t)

	if err := dashboard.PublishTrial(TrialUpdate{TrialID: 1, N: 4}); err != nil {
		t.Fatalf("PublishTrial failed: %v", err)
	}

	stats := dashboard.GetStatistics()
	if stats.TrialsPublished != 1 || stats.MessagesSent != 0 {
		t.Errorf("Expected 1 published and 0 sent, got %d/%d", stats.TrialsPublished, stats.MessagesSent)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	dashboard, server := newTestDashboard(t)

	dashboard.PublishTrial(TrialUpdate{TrialID: 0, N: 4, Success: true})

	resp, err := http.Get(server.URL + "/api/statistics")
	if err != nil {
		t.Fatalf("Failed to fetch statistics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var stats DashboardStatistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode statistics: %v", err)
	}

	if stats.TrialsPublished != 1 {
		t.Errorf("Expected 1 published trial, got %d", stats.TrialsPublished)
	}
}

func TestConnectionDisconnectTracking(t *testing.T) {
	dashboard, server := newTestDashboard(t)
	conn := dialWebSocket(t, server)

	waitFor(t, time.Second, func() bool {
		return dashboard.GetStatistics().ActiveConnections == 1
	})

	conn.Close()

	waitFor(t, time.Second, func() bool {
		return dashboard.GetStatistics().ActiveConnections == 0
	})
}

func TestConsumeResultsFromRunner(t *testing.T) {
	dashboard, server := newTestDashboard(t)
	conn := dialWebSocket(t, server)

	waitFor(t, time.Second, func() bool {
		return dashboard.GetStatistics().ActiveConnections == 1
	})

	config := paralleltrials.DefaultConfig()
	config.N = 6
	config.NumTrials = 4
	config.RandomSeed = 12

	runner, err := paralleltrials.NewTrialRunner(config)
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}

	stream := make(chan paralleltrials.TrialResult, config.NumTrials)
	runner.StreamResults(stream)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		dashboard.ConsumeResults(ctx, stream)
		close(done)
	}()

	if _, err := runner.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(stream)
	<-done

	waitFor(t, time.Second, func() bool {
		return dashboard.GetStatistics().TrialsPublished == int64(config.NumTrials)
	})

	received := 0
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for received < config.NumTrials {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read broadcast %d: %v", received, err)
		}

		var update TrialUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			t.Fatalf("Failed to decode broadcast: %v", err)
		}
		if update.N != 6 {
			t.Errorf("Unexpected board size in update: %+v", update)
		}
		received++
	}
}
