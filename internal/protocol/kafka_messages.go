package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// AlertTypeFired marks a prayer alert reaching its adjusted time
const AlertTypeFired = "PRAYER_ALERT"

// AlertNotification is the message format on the alerts topic
type AlertNotification struct {
	Type         string    `json:"type"`
	AlertID      string    `json:"alert_id"`
	Prayer       string    `json:"prayer"`
	AdjustedTime string    `json:"adjusted_time"`
	OffsetMin    int       `json:"offset_minutes"`
	Place        string    `json:"place"`
	Hijri        string    `json:"hijri,omitempty"`
	Sound        string    `json:"sound,omitempty"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	FiredAt      time.Time `json:"fired_at"`
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	if alert.AlertID == "" || alert.Prayer == "" {
		return nil, fmt.Errorf("alert notification missing id or prayer")
	}
	return &alert, nil
}
