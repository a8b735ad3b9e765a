package notification

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/protocol"
	"github.com/smukkama/prayer-server/pkg/config"
)

func testAlert() *protocol.AlertNotification {
	return &protocol.AlertNotification{
		Type:         protocol.AlertTypeFired,
		AlertID:      "7f0c",
		Prayer:       "Maghrib",
		AdjustedTime: "18:10",
		OffsetMin:    5,
		Place:        "Cairo",
		Hijri:        "21 Ramadan 1447 AH",
		ScheduledAt:  time.Date(2026, time.March, 10, 18, 10, 0, 0, time.UTC),
	}
}

func TestRenderAlert(t *testing.T) {
	body, err := RenderAlert(testAlert())
	if err != nil {
		t.Fatalf("RenderAlert failed: %v", err)
	}

	for _, want := range []string{"Prayer: Maghrib", "18:10 (offset 5 min)", "Place: Cairo", "Hijri: 21 Ramadan 1447 AH"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestSendPrayerAlert(t *testing.T) {
	cfg := config.SMTPConfig{Host: "smtp.test", Port: 587, Username: "u", Password: "p", From: "a@test", To: "b@test"}
	n := NewEmailNotifier(cfg, zerolog.Nop())

	var gotAddr string
	var gotMsg []byte
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		return nil
	}

	if err := n.SendPrayerAlert(testAlert()); err != nil {
		t.Fatalf("SendPrayerAlert failed: %v", err)
	}
	if gotAddr != "smtp.test:587" {
		t.Errorf("Expected smtp.test:587, got %s", gotAddr)
	}
	if !strings.Contains(string(gotMsg), "Subject: Maghrib 18:10 - Cairo") {
		t.Errorf("Unexpected message:\n%s", gotMsg)
	}
}

func TestSendPrayerAlert_SkipsWhenUnconfigured(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{}, zerolog.Nop())
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Error("Expected no send without credentials")
		return nil
	}

	if err := n.SendPrayerAlert(testAlert()); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestSendPrayerAlert_RejectsUnknownType(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{}, zerolog.Nop())
	alert := testAlert()
	alert.Type = "SOMETHING_ELSE"

	if err := n.SendPrayerAlert(alert); err == nil {
		t.Error("Expected error for unknown type")
	}
}
