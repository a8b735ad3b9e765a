package connection

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrMaxConnectionsReached is returned when the display limit is hit
	ErrMaxConnectionsReached = errors.New("maximum connections reached")
	// ErrNotFound is returned for unknown connection ids
	ErrNotFound = errors.New("connection not found")
)

// Client is one subscribed display
type Client struct {
	ID          string
	Display     string
	ConnectedAt time.Time

	conn     net.Conn
	writeMu  sync.Mutex
	mu       sync.RWMutex
	lastSeen time.Time
	ready    atomic.Bool
}

// MarkReady lets broadcasts reach the client. Until then only direct writes do.
func (c *Client) MarkReady() {
	c.ready.Store(true)
}

// Ready reports whether the client receives broadcasts
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Touch records client activity
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
}

// LastSeen returns the last activity timestamp
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// Write sends data to the client under a write deadline. Writes are serialised
// so broadcast lines and acks never interleave.
func (c *Client) Write(data []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(data)
	return err
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Manager tracks subscribed displays
type Manager struct {
	clients   map[string]*Client
	byDisplay map[string][]string
	mu        sync.RWMutex
	maxConns  int
}

// NewManager creates a new connection manager
func NewManager(maxConnections int) *Manager {
	return &Manager{
		clients:   make(map[string]*Client),
		byDisplay: make(map[string][]string),
		maxConns:  maxConnections,
	}
}

// Register adds a subscribed display
func (m *Manager) Register(id, display string, conn net.Conn) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxConns > 0 && len(m.clients) >= m.maxConns {
		return nil, ErrMaxConnectionsReached
	}
	if _, exists := m.clients[id]; exists {
		return nil, fmt.Errorf("connection ID %s already registered", id)
	}

	now := time.Now()
	client := &Client{
		ID:          id,
		Display:     display,
		ConnectedAt: now,
		conn:        conn,
		lastSeen:    now,
	}

	m.clients[id] = client
	m.byDisplay[display] = append(m.byDisplay[display], id)
	return client, nil
}

// Unregister removes a display
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[id]
	if !exists {
		return ErrNotFound
	}

	ids := m.byDisplay[client.Display]
	for i, other := range ids {
		if other == id {
			m.byDisplay[client.Display] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byDisplay[client.Display]) == 0 {
		delete(m.byDisplay, client.Display)
	}

	delete(m.clients, id)
	return nil
}

// Get retrieves a client by connection id
func (m *Manager) Get(id string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, exists := m.clients[id]
	return client, exists
}

// UpdateActivity records activity for a connection
func (m *Manager) UpdateActivity(id string) error {
	client, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	client.Touch()
	return nil
}

// Broadcast writes data to every ready client and returns the ids whose write failed
func (m *Manager) Broadcast(data []byte, timeout time.Duration) []string {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		if c.Ready() {
			clients = append(clients, c)
		}
	}
	m.mu.RUnlock()

	var failed []string
	for _, c := range clients {
		if err := c.Write(data, timeout); err != nil {
			failed = append(failed, c.ID)
		}
	}
	return failed
}

// Count returns the number of subscribed displays
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CountByDisplay returns the number of connections per display name
func (m *Manager) CountByDisplay() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int, len(m.byDisplay))
	for display, ids := range m.byDisplay {
		result[display] = len(ids)
	}
	return result
}

// Stats returns statistics about the connection manager
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		TotalConnections: len(m.clients),
		UniqueDisplays:   len(m.byDisplay),
		MaxConnections:   m.maxConns,
	}
}

// ManagerStats contains statistics about the connection manager
type ManagerStats struct {
	TotalConnections int `json:"total_connections"`
	UniqueDisplays   int `json:"unique_displays"`
	MaxConnections   int `json:"max_connections"`
}
