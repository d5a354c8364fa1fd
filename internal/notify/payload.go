package notify

import (
	"fmt"
	"strings"

	"diskmind/internal/alerts"
)

// priority maps severity onto ntfy/gotify priorities.
func priority(sev alerts.Severity) int {
	switch sev {
	case alerts.SeverityCritical:
		return 5
	case alerts.SeverityWarning:
		return 3
	default:
		return 2
	}
}

type ntfyPayload struct {
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

type gotifyPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

type genericPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func title(a alerts.Alert) string {
	t := "diskmind " + strings.ToUpper(string(a.Severity))
	if a.Host != "" {
		t += " on " + a.Host
	}
	return t
}

// formatMessage is the plain-text form used for chat services.
func formatMessage(a alerts.Alert) string {
	if a.Host != "" {
		return fmt.Sprintf("[%s] [%s] %s", a.Severity, a.Host, a.Message)
	}
	return fmt.Sprintf("[%s] %s", a.Severity, a.Message)
}

// request builds the target URL and body for a JSON endpoint.
func request(ep Endpoint, a alerts.Alert) (string, any, error) {
	switch ep.Service {
	case ServiceNtfy:
		origin, topic, err := ntfyTarget(ep.URL)
		if err != nil {
			return "", nil, err
		}
		return origin, ntfyPayload{Topic: topic, Title: title(a), Message: a.Message, Priority: priority(a.Severity)}, nil
	case ServiceGotify:
		return ep.URL, gotifyPayload{Title: title(a), Message: a.Message, Priority: priority(a.Severity)}, nil
	default:
		return ep.URL, genericPayload{Title: title(a), Message: a.Message, Severity: string(a.Severity)}, nil
	}
}
