package notify

import (
	"time"
)

// Service identifies how an endpoint is delivered to.
type Service string

const (
	ServiceNtfy     Service = "ntfy"
	ServiceGotify   Service = "gotify"
	ServiceGeneric  Service = "generic"
	ServiceDiscord  Service = "discord"
	ServiceSlack    Service = "slack"
	ServicePushover Service = "pushover"
	ServiceTelegram Service = "telegram"
	ServiceShoutrrr Service = "shoutrrr"
)

// Endpoint is one parsed entry of the configured webhook list.
type Endpoint struct {
	Channel string  `json:"channel"` // the configured string without the "!" marker
	Service Service `json:"service"`
	URL     string  `json:"url"`
	Enabled bool    `json:"enabled"`
}

// Minimum severity levels.
const (
	MinOff      = "off"
	MinInfo     = "info"
	MinWarning  = "warning"
	MinCritical = "critical"
)

// Policy decides which alerts are sent and how often.
type Policy struct {
	MinSeverity     string `json:"min_severity"`
	IncludeRecovery bool   `json:"include_recovery"`
	CooldownMinutes int    `json:"cooldown_minutes"`
}

// minRank maps MinSeverity onto the alert severity ranking. Unknown values
// behave like warning.
func (p Policy) minRank() int {
	switch p.MinSeverity {
	case MinInfo:
		return 0
	case MinCritical:
		return 2
	default:
		return 1
	}
}

// Delivery is one attempt to send one alert to one endpoint.
type Delivery struct {
	AlertID   int64     `json:"alert_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Summary counts what happened to the alerts of one dispatch call.
type Summary struct {
	Alerts    int `json:"alerts"`
	Filtered  int `json:"filtered"`
	Cooldown  int `json:"cooldown"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Store is the persistence the dispatcher needs.
type Store interface {
	CountSuccessfulNotifications(diskID string, since time.Time) (int, error)
	RecordNotification(d Delivery) error
}
