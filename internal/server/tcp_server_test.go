package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/alerting"
	"github.com/smukkama/prayer-server/internal/connection"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/timer"
	"github.com/smukkama/prayer-server/pkg/config"
)

type fakeStates struct {
	ch    chan prayer.State
	state prayer.State
}

func (f *fakeStates) Subscribe() (<-chan prayer.State, func()) { return f.ch, func() {} }
func (f *fakeStates) State() prayer.State                     { return f.state }

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("Write failed: %v", err)
	}
}

func (c *testClient) read() map[string]any {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.t.Fatalf("Read failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		c.t.Fatalf("Invalid JSON line %q: %v", line, err)
	}
	return msg
}

func startServer(t *testing.T, cfg config.StreamConfig, states *fakeStates) (*TCPServer, func()) {
	t.Helper()
	tm := timer.NewManager()
	tm.Start()

	srv := NewTCPServer(cfg, connection.NewManager(cfg.MaxConnections), tm, states, zerolog.Nop())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return srv, func() {
		srv.Stop()
		tm.Stop()
	}
}

func testConfig() config.StreamConfig {
	return config.StreamConfig{
		Port:              0,
		MaxConnections:    10,
		IdentifyTimeout:   time.Second,
		InactivityTimeout: time.Minute,
		WriteTimeout:      time.Second,
	}
}

func TestTCPServer_SubscribeAndStream(t *testing.T) {
	states := &fakeStates{
		ch:    make(chan prayer.State, 1),
		state: prayer.State{Status: prayer.StatusPlaceholder},
	}
	srv, stop := startServer(t, testConfig(), states)
	defer stop()

	c := dial(t, srv.Addr())
	defer c.conn.Close()

	c.send(`{"type":"subscribe","display":"hall"}`)

	if ack := c.read(); ack["type"] != "ack" || ack["status"] != "subscribed" {
		t.Fatalf("Expected subscribed ack, got %v", ack)
	}
	if first := c.read(); first["type"] != "countdown" || first["remaining"] != "--:--:--" {
		t.Fatalf("Expected initial placeholder countdown, got %v", first)
	}

	states.ch <- prayer.State{
		Status:    prayer.StatusActive,
		Name:      prayer.Maghrib,
		Time:      prayer.Clock{Hour: 18, Minute: 5},
		Remaining: 3 * time.Hour,
	}
	msg := c.read()
	if msg["name"] != "Maghrib" || msg["remaining"] != "03:00:00" || msg["time"] != "18:05" {
		t.Errorf("Unexpected countdown %v", msg)
	}

	c.send(`{"type":"keepalive"}`)
	if ack := c.read(); ack["status"] != "alive" {
		t.Errorf("Expected alive ack, got %v", ack)
	}

	fire := alerting.Fire{Name: prayer.Isha, Time: prayer.Clock{Hour: 19, Minute: 35}, Sound: "adhan.mp3"}
	if err := srv.Deliver(context.Background(), fire); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if alert := c.read(); alert["type"] != "alert" || alert["name"] != "Isha" {
		t.Errorf("Expected Isha alert, got %v", alert)
	}
}

func TestTCPServer_AckPrecedesBroadcasts(t *testing.T) {
	states := &fakeStates{
		ch:    make(chan prayer.State, 1),
		state: prayer.State{Status: prayer.StatusPlaceholder},
	}
	srv, stop := startServer(t, testConfig(), states)
	defer stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case states.ch <- prayer.State{Status: prayer.StatusActive, Name: prayer.Asr, Remaining: time.Hour}:
			}
		}
	}()

	for i := 0; i < 5; i++ {
		c := dial(t, srv.Addr())
		c.send(`{"type":"subscribe","display":"hall"}`)
		if ack := c.read(); ack["type"] != "ack" || ack["status"] != "subscribed" {
			t.Fatalf("Expected subscribed ack first, got %v", ack)
		}
		if first := c.read(); first["type"] != "countdown" {
			t.Fatalf("Expected countdown after ack, got %v", first)
		}
		c.conn.Close()
	}
}

func TestTCPServer_RejectsNonSubscribe(t *testing.T) {
	states := &fakeStates{ch: make(chan prayer.State)}
	srv, stop := startServer(t, testConfig(), states)
	defer stop()

	c := dial(t, srv.Addr())
	defer c.conn.Close()

	c.send(`{"type":"keepalive"}`)
	if ack := c.read(); ack["status"] != "error" {
		t.Errorf("Expected error ack, got %v", ack)
	}
}

func TestTCPServer_InactivityClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = 100 * time.Millisecond

	states := &fakeStates{ch: make(chan prayer.State)}
	srv, stop := startServer(t, cfg, states)
	defer stop()

	c := dial(t, srv.Addr())
	defer c.conn.Close()

	c.send(`{"type":"subscribe","display":"hall"}`)
	c.read()
	c.read()

	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.reader.ReadString('\n'); err == nil {
		t.Error("Expected connection closed after inactivity")
	}
}
