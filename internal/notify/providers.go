package notify

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseEndpoint parses "[!]service:url". A leading "!" disables the
// endpoint. Anything without a recognized service prefix is a generic
// webhook whose URL is the whole string.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	ep := Endpoint{Enabled: true}
	if strings.HasPrefix(s, "!") {
		ep.Enabled = false
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	ep.Channel = s

	ep.Service, ep.URL = ServiceGeneric, s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		switch svc := Service(strings.ToLower(prefix)); svc {
		case ServiceNtfy, ServiceGotify, ServiceGeneric, ServiceDiscord, ServiceSlack,
			ServicePushover, ServiceTelegram, ServiceShoutrrr:
			ep.Service, ep.URL = svc, strings.TrimSpace(rest)
		}
	}
	if ep.URL == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no url", s)
	}
	if ep.Service == ServiceNtfy {
		if _, _, err := ntfyTarget(ep.URL); err != nil {
			return Endpoint{}, fmt.Errorf("endpoint %q: %w", s, err)
		}
	}
	return ep, nil
}

// ParseEndpoints parses a configured list, skipping blank and invalid
// entries. Invalid entries are returned as errors for logging.
func ParseEndpoints(list []string) ([]Endpoint, []error) {
	var (
		out  []Endpoint
		errs []error
	)
	for _, raw := range list {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ep, err := ParseEndpoint(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ep)
	}
	return out, errs
}

// ShoutrrrURL converts a chat webhook endpoint into the shoutrrr URL form.
func (e Endpoint) ShoutrrrURL() (string, error) {
	switch e.Service {
	case ServiceDiscord:
		return buildDiscordURL(e.URL)
	case ServiceSlack:
		return buildSlackURL(e.URL)
	case ServicePushover:
		return buildPushoverURL(e.URL)
	case ServiceTelegram:
		return buildTelegramURL(e.URL)
	case ServiceShoutrrr:
		return e.URL, nil
	default:
		return "", fmt.Errorf("service %s is not delivered through shoutrrr", e.Service)
	}
}

// ntfyTarget splits an ntfy URL into the origin to POST to and the topic.
func ntfyTarget(raw string) (origin, topic string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid ntfy url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid ntfy url %q", raw)
	}
	topic = strings.Trim(u.Path, "/")
	if topic == "" {
		return "", "", fmt.Errorf("ntfy url has no topic")
	}
	return u.Scheme + "://" + u.Host, topic, nil
}

func buildDiscordURL(webhookURL string) (string, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if strings.HasPrefix(webhookURL, "discord://") {
		return webhookURL, nil
	}

	// Parse: https://discord.com/api/webhooks/{id}/{token}
	parts := strings.Split(strings.TrimRight(webhookURL, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid Discord webhook URL format")
	}
	token := parts[len(parts)-1]
	id := parts[len(parts)-2]
	if token == "" || id == "" {
		return "", fmt.Errorf("could not extract webhook ID and token from URL")
	}
	return fmt.Sprintf("discord://%s@%s", token, id), nil
}

func buildSlackURL(webhookURL string) (string, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if strings.HasPrefix(webhookURL, "slack://") {
		return webhookURL, nil
	}

	// Parse: https://hooks.slack.com/services/TAAA/BBBB/CCCC
	parts := strings.Split(strings.TrimRight(webhookURL, "/"), "/")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid Slack webhook URL format")
	}
	tokenA := parts[len(parts)-3]
	tokenB := parts[len(parts)-2]
	tokenC := parts[len(parts)-1]
	if tokenA == "" || tokenB == "" || tokenC == "" {
		return "", fmt.Errorf("could not extract tokens from Slack webhook URL")
	}
	return fmt.Sprintf("slack://%s/%s/%s", tokenA, tokenB, tokenC), nil
}

// buildPushoverURL takes the API form
// https://api.pushover.net/1/messages.json?token=APP&user=USER.
func buildPushoverURL(webhookURL string) (string, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if strings.HasPrefix(webhookURL, "pushover://") {
		return webhookURL, nil
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("invalid Pushover URL: %w", err)
	}
	q := u.Query()
	token, user := q.Get("token"), q.Get("user")
	if token == "" || user == "" {
		return "", fmt.Errorf("pushover URL needs token and user parameters")
	}
	return fmt.Sprintf("pushover://shoutrrr:%s@%s/", token, user), nil
}

// buildTelegramURL takes the Bot API form
// https://api.telegram.org/bot<TOKEN>/sendMessage?chat_id=<CHAT>.
func buildTelegramURL(webhookURL string) (string, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if strings.HasPrefix(webhookURL, "telegram://") {
		return webhookURL, nil
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("invalid Telegram URL: %w", err)
	}
	var token string
	for _, part := range strings.Split(u.Path, "/") {
		if strings.HasPrefix(part, "bot") && len(part) > 3 {
			token = part[3:]
			break
		}
	}
	chat := u.Query().Get("chat_id")
	if token == "" || chat == "" {
		return "", fmt.Errorf("telegram URL needs a bot token and chat_id")
	}
	return fmt.Sprintf("telegram://%s@telegram?chats=%s", token, chat), nil
}
