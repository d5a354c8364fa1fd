package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"diskmind/internal/alerts"
	"diskmind/internal/events"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// Dispatcher delivers the alerts of one scan pass to the configured
// endpoints and records every attempt.
type Dispatcher struct {
	store     Store
	transport Transport
	sender    Sender
	bus       *events.Bus
	timeout   time.Duration
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. A nil transport or sender falls back
// to the resty and shoutrrr implementations.
func NewDispatcher(store Store, transport Transport, sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if transport == nil {
		transport = NewHTTPTransport(timeout)
	}
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{
		store:     store,
		transport: transport,
		sender:    sender,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SetBus makes failed deliveries visible on the event bus.
func (d *Dispatcher) SetBus(bus *events.Bus) {
	d.bus = bus
}

// SetClock replaces the time source used for delivery timestamps.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch sends each qualifying alert to every enabled endpoint once.
// Delivery errors never stop the loop; they end up in the log table.
func (d *Dispatcher) Dispatch(ctx context.Context, list []alerts.Alert, p Policy, endpoints []Endpoint) Summary {
	sum := Summary{Alerts: len(list)}
	if p.MinSeverity == MinOff || len(list) == 0 {
		sum.Filtered = len(list)
		return sum
	}

	enabled := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Enabled {
			enabled = append(enabled, ep)
		}
	}
	if len(enabled) == 0 {
		sum.Filtered = len(list)
		return sum
	}

	for _, a := range list {
		if !Qualifies(a, p) {
			sum.Filtered++
			continue
		}
		if d.inCooldown(a, p) {
			sum.Cooldown++
			continue
		}
		for _, ep := range enabled {
			if err := d.deliver(ctx, a, ep); err != nil {
				sum.Failed++
			} else {
				sum.Delivered++
			}
		}
	}
	return sum
}

// Qualifies applies the type and severity part of the policy.
func Qualifies(a alerts.Alert, p Policy) bool {
	if p.MinSeverity == MinOff || a.Type().DashboardOnly() {
		return false
	}
	if a.Severity == alerts.SeverityRecovery {
		return p.IncludeRecovery
	}
	return a.Severity.Rank() >= p.minRank()
}

// inCooldown reports whether the disk had a successful delivery within the
// cooldown window before the alert. Lookup errors let the alert through.
func (d *Dispatcher) inCooldown(a alerts.Alert, p Policy) bool {
	if p.CooldownMinutes <= 0 || d.store == nil {
		return false
	}
	since := a.Timestamp.Add(-time.Duration(p.CooldownMinutes) * time.Minute)
	n, err := d.store.CountSuccessfulNotifications(a.DiskID, since)
	if err != nil {
		log.Printf("notify: cooldown lookup for %s: %v", a.DiskID, err)
		return false
	}
	return n > 0
}

// Test sends one test message to ep, enabled or not, and records the
// attempt so it shows up in the webhook status. The record has no alert,
// so it never starts a cooldown.
func (d *Dispatcher) Test(ctx context.Context, ep Endpoint) error {
	a := alerts.Alert{
		Host:      "diskmind",
		Timestamp: d.now().UTC(),
		Severity:  alerts.SeverityInfo,
		Message:   "Test notification from diskmind",
	}
	return d.deliver(ctx, a, ep)
}

// deliver makes one attempt and records it.
func (d *Dispatcher) deliver(ctx context.Context, a alerts.Alert, ep Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.send(ctx, a, ep)
	rec := Delivery{
		AlertID:   a.ID,
		Timestamp: d.now().UTC(),
		Channel:   ep.Channel,
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
		log.Printf("notify: send alert %d to %s failed: %v", a.ID, ep.Channel, err)
		d.bus.Publish(events.Event{
			Type:     events.DeliveryFailed,
			Severity: string(a.Severity),
			ScanID:   a.ScanID,
			Host:     a.Host,
			DiskID:   a.DiskID,
			Message:  fmt.Sprintf("delivery to %s failed: %v", ep.Channel, err),
			Data:     rec,
		})
	} else {
		log.Printf("notify: alert %d (%s) sent to %s", a.ID, a.Type(), ep.Channel)
	}

	if d.store != nil {
		if dbErr := d.store.RecordNotification(rec); dbErr != nil {
			log.Printf("notify: record delivery: %v", dbErr)
		}
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, a alerts.Alert, ep Endpoint) error {
	switch ep.Service {
	case ServiceDiscord, ServiceSlack, ServicePushover, ServiceTelegram, ServiceShoutrrr:
		u, err := ep.ShoutrrrURL()
		if err != nil {
			return err
		}
		return sendWithContext(ctx, d.sender, u, formatMessage(a))
	default:
		target, payload, err := request(ep, a)
		if err != nil {
			return err
		}
		return d.transport.PostJSON(ctx, target, payload)
	}
}
