package connection

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

type mockAddr struct{}

func (m *mockAddr) Network() string { return "tcp" }
func (m *mockAddr) String() string  { return "127.0.0.1:0" }

type mockConn struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
}

func (m *mockConn) Read(b []byte) (n int, err error) { return 0, nil }
func (m *mockConn) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.written = append(m.written, append([]byte(nil), b...))
	return len(b), nil
}
func (m *mockConn) Close() error                       { return nil }
func (m *mockConn) LocalAddr() net.Addr                { return &mockAddr{} }
func (m *mockConn) RemoteAddr() net.Addr               { return &mockAddr{} }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) lines() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}

func TestManager_Register(t *testing.T) {
	m := NewManager(10)

	if _, err := m.Register("conn1", "hall", &mockConn{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if m.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", m.Count())
	}

	client, exists := m.Get("conn1")
	if !exists {
		t.Fatal("Client not found")
	}
	if client.Display != "hall" {
		t.Errorf("Expected display hall, got %s", client.Display)
	}

	if _, err := m.Register("conn1", "hall", &mockConn{}); err == nil {
		t.Error("Expected error for duplicate id")
	}
}

func TestManager_RegisterMaxConnections(t *testing.T) {
	m := NewManager(2)

	m.Register("conn1", "hall", &mockConn{})
	m.Register("conn2", "entrance", &mockConn{})

	if _, err := m.Register("conn3", "office", &mockConn{}); err != ErrMaxConnectionsReached {
		t.Errorf("Expected ErrMaxConnectionsReached, got %v", err)
	}
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager(10)

	m.Register("conn1", "hall", &mockConn{})
	m.Register("conn2", "hall", &mockConn{})

	if err := m.Unregister("conn1"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if got := m.CountByDisplay()["hall"]; got != 1 {
		t.Errorf("Expected 1 hall connection, got %d", got)
	}

	m.Unregister("conn2")
	if _, ok := m.CountByDisplay()["hall"]; ok {
		t.Error("Expected empty display entry removed")
	}

	if err := m.Unregister("conn2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManager_UpdateActivity(t *testing.T) {
	m := NewManager(10)
	m.Register("conn1", "hall", &mockConn{})

	client, _ := m.Get("conn1")
	before := client.LastSeen()
	time.Sleep(10 * time.Millisecond)

	if err := m.UpdateActivity("conn1"); err != nil {
		t.Fatalf("UpdateActivity failed: %v", err)
	}
	if !client.LastSeen().After(before) {
		t.Error("Expected last seen to advance")
	}

	if err := m.UpdateActivity("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager(10)
	good := &mockConn{}
	bad := &mockConn{writeErr: errors.New("broken pipe")}

	c1, _ := m.Register("good", "hall", good)
	c2, _ := m.Register("bad", "entrance", bad)
	c1.MarkReady()
	c2.MarkReady()

	failed := m.Broadcast([]byte("{\"type\":\"countdown\"}\n"), time.Second)
	if len(failed) != 1 || failed[0] != "bad" {
		t.Errorf("Expected bad to fail, got %v", failed)
	}
	if good.lines() != 1 {
		t.Errorf("Expected 1 line written, got %d", good.lines())
	}
}

func TestManager_BroadcastSkipsPendingClients(t *testing.T) {
	m := NewManager(10)
	conn := &mockConn{}

	client, err := m.Register("conn1", "hall", conn)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	m.Broadcast([]byte("{\"type\":\"countdown\"}\n"), time.Second)
	if conn.lines() != 0 {
		t.Errorf("Expected no broadcast before ready, got %d lines", conn.lines())
	}

	client.Write([]byte("{\"type\":\"ack\"}\n"), time.Second)
	client.MarkReady()
	m.Broadcast([]byte("{\"type\":\"countdown\"}\n"), time.Second)
	if conn.lines() != 2 {
		t.Errorf("Expected ack then countdown, got %d lines", conn.lines())
	}
}

func TestManager_CountByDisplay(t *testing.T) {
	m := NewManager(10)
	m.Register("conn1", "hall", &mockConn{})
	m.Register("conn2", "hall", &mockConn{})
	m.Register("conn3", "entrance", &mockConn{})

	counts := m.CountByDisplay()
	if counts["hall"] != 2 || counts["entrance"] != 1 {
		t.Errorf("Unexpected counts %v", counts)
	}
}

func TestManager_Stats(t *testing.T) {
	m := NewManager(100)

	m.Register("conn1", "hall", &mockConn{})
	m.Register("conn2", "hall", &mockConn{})
	m.Register("conn3", "entrance", &mockConn{})

	stats := m.Stats()
	if stats.TotalConnections != 3 {
		t.Errorf("Expected 3 total connections, got %d", stats.TotalConnections)
	}
	if stats.UniqueDisplays != 2 {
		t.Errorf("Expected 2 unique displays, got %d", stats.UniqueDisplays)
	}
	if stats.MaxConnections != 100 {
		t.Errorf("Expected max 100, got %d", stats.MaxConnections)
	}
}
