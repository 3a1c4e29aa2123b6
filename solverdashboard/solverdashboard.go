// Package solverdashboard serves live N-Queens trial results over WebSocket.
// A trial runner streams its results into the dashboard, which broadcasts
// them as JSON to every connected client and exposes aggregate counters over
// HTTP. Slow clients drop messages instead of stalling the publisher.
package solverdashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nqueenslab/nqueens-in-golang/paralleltrials"
)

// TrialUpdate is the JSON message broadcast for every completed trial.
type TrialUpdate struct {
	TrialID    int       `json:"trial_id"`
	N          int       `json:"n"`
	Success    bool      `json:"success"`
	Iterations int       `json:"iterations"`
	Restarts   int       `json:"restarts"`
	DurationMs float64   `json:"duration_ms"`
	Board      []int     `json:"board,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config contains configuration for the dashboard.
type Config struct {
	HTTPPort       int
	MaxConnections int
	SendQueueSize  int
	PingInterval   time.Duration
	EnableLogging  bool
}

// DefaultConfig returns the default dashboard configuration.
func DefaultConfig() Config {
	return Config{
		HTTPPort:       8080,
		MaxConnections: 100,
		SendQueueSize:  64,
		PingInterval:   30 * time.Second,
	}
}

// DashboardStatistics tracks dashboard activity.
type DashboardStatistics struct {
	StartTime         time.Time `json:"start_time"`
	TrialsPublished   int64     `json:"trials_published"`
	MessagesSent      int64     `json:"messages_sent"`
	MessagesDropped   int64     `json:"messages_dropped"`
	ActiveConnections int64     `json:"active_connections"`
}

// Connection represents one WebSocket subscriber.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	SendQueue chan []byte
}

// Dashboard broadcasts trial results to WebSocket subscribers.
type Dashboard struct {
	config Config

	connections map[string]*Connection
	connMutex   sync.RWMutex
	connSeq     int64

	trialsPublished int64
	messagesSent    int64
	messagesDropped int64
	activeConns     int64
	startTime       time.Time

	mux        *http.ServeMux
	httpServer *http.Server
	upgrader   websocket.Upgrader

	running bool
	mutex   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDashboard creates a dashboard from the given configuration.
func NewDashboard(config Config) (*Dashboard, error) {
	if config.HTTPPort <= 0 {
		return nil, errors.New("http port must be positive")
	}

	if config.MaxConnections <= 0 {
		config.MaxConnections = 100
	}

	if config.SendQueueSize <= 0 {
		config.SendQueueSize = 64
	}

	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		config:      config,
		connections: make(map[string]*Connection),
		startTime:   time.Now(),
		mux:         http.NewServeMux(),
		ctx:         ctx,
		cancel:      cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	d.mux.HandleFunc("/ws", d.handleWebSocket)
	d.mux.HandleFunc("/api/statistics", d.handleStatistics)

	return d, nil
}

// Handler returns the dashboard's HTTP handler, for embedding in an existing
// server or in tests.
func (d *Dashboard) Handler() http.Handler {
	return d.mux
}

// Start starts the dashboard's HTTP server.
func (d *Dashboard) Start() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.running {
		return errors.New("dashboard is already running")
	}
	d.running = true

	d.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", d.config.HTTPPort),
		Handler: d.mux,
	}

	go func() {
		if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Dashboard HTTP server error: %v", err)
		}
	}()

	if d.config.EnableLogging {
		log.Printf("Solver dashboard started on port %d", d.config.HTTPPort)
	}

	return nil
}

// Stop stops the dashboard and closes every client connection.
func (d *Dashboard) Stop() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.running {
		return errors.New("dashboard is not running")
	}
	d.running = false
	d.cancel()

	d.connMutex.Lock()
	for _, conn := range d.connections {
		conn.Conn.Close()
	}
	d.connMutex.Unlock()

	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.httpServer.Shutdown(ctx)
	}

	d.wg.Wait()

	if d.config.EnableLogging {
		log.Printf("Solver dashboard stopped")
	}

	return nil
}

// PublishTrial broadcasts a trial update to every connected client.
func (d *Dashboard) PublishTrial(update TrialUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	data, err := json.Marshal(update)
	if err != nil {
		return err
	}

	atomic.AddInt64(&d.trialsPublished, 1)

	d.connMutex.RLock()
	defer d.connMutex.RUnlock()

	for _, conn := range d.connections {
		select {
		case conn.SendQueue <- data:
			atomic.AddInt64(&d.messagesSent, 1)
		default:
			atomic.AddInt64(&d.messagesDropped, 1)
		}
	}

	return nil
}

// ConsumeResults converts trial results from a runner stream into broadcast
// updates until the channel closes or the context is cancelled. The caller
// wires it up as:
//
//	stream := make(chan paralleltrials.TrialResult, 64)
//	runner.StreamResults(stream)
//	go dashboard.ConsumeResults(ctx, stream)
func (d *Dashboard) ConsumeResults(ctx context.Context, results <-chan paralleltrials.TrialResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.ctx.Done():
			return
		case result, ok := <-results:
			if !ok {
				return
			}
			d.PublishTrial(TrialUpdate{
				TrialID:    result.TrialID,
				N:          result.N,
				Success:    result.Success,
				Iterations: result.Iterations,
				Restarts:   result.Restarts,
				DurationMs: float64(result.Duration) / float64(time.Millisecond),
				Board:      result.Board,
			})
		}
	}
}

// GetStatistics returns a snapshot of the dashboard counters.
func (d *Dashboard) GetStatistics() DashboardStatistics {
	return DashboardStatistics{
		StartTime:         d.startTime,
		TrialsPublished:   atomic.LoadInt64(&d.trialsPublished),
		MessagesSent:      atomic.LoadInt64(&d.messagesSent),
		MessagesDropped:   atomic.LoadInt64(&d.messagesDropped),
		ActiveConnections: atomic.LoadInt64(&d.activeConns),
	}
}

func (d *Dashboard) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats := d.GetStatistics()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt64(&d.activeConns) >= int64(d.config.MaxConnections) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if d.config.EnableLogging {
			log.Printf("WebSocket upgrade error: %v", err)
		}
		return
	}

	wsConn := &Connection{
		ID:        fmt.Sprintf("conn_%d", atomic.AddInt64(&d.connSeq, 1)),
		Conn:      conn,
		SendQueue: make(chan []byte, d.config.SendQueueSize),
	}

	d.connMutex.Lock()
	d.connections[wsConn.ID] = wsConn
	atomic.AddInt64(&d.activeConns, 1)
	d.connMutex.Unlock()

	d.wg.Add(1)
	go d.writePump(wsConn)

	go d.readPump(wsConn)
}

func (d *Dashboard) readPump(conn *Connection) {
	defer func() {
		conn.Conn.Close()
		d.connMutex.Lock()
		delete(d.connections, conn.ID)
		atomic.AddInt64(&d.activeConns, -1)
		d.connMutex.Unlock()
	}()

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *Dashboard) writePump(conn *Connection) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case data := <-conn.SendQueue:
			if err := conn.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
