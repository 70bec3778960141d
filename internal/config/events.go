package config

import "os"

// EventsConfig configures the RabbitMQ publisher and the audit consumer.
type EventsConfig struct {
	Enabled bool
	URL     string
	LogDir  string // consumer appends one line per event here
}

// LoadEventsConfig enables events only when RABBITMQ_URL (or AMQP_URL) is set.
func LoadEventsConfig() EventsConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return EventsConfig{
		Enabled: url != "" && envBool("EVENTS_ENABLED", true),
		URL:     url,
		LogDir:  envStr("EVENT_LOG_DIR", "logs"),
	}
}
