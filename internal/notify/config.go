package notify

import (
	"errors"
	"fmt"
)

// Config holds ntfy notification configuration.
type Config struct {
	Enabled  bool   // Whether run reports are sent
	Server   string // ntfy server URL (default: https://ntfy.sh)
	Topic    string // Topic name (required if enabled)
	Priority string // Message priority: min, low, default, high, urgent
	Tags     string // Comma-separated emoji tags (e.g., "musical_note")
	Token    string // Optional access token for private topics
}

// Validate checks configuration is valid when enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Topic == "" {
		return errors.New("NTFY_TOPIC is required when NTFY_ENABLED=true")
	}

	validPriorities := map[string]bool{
		"min": true, "low": true, "default": true, "high": true, "urgent": true,
	}
	if !validPriorities[c.Priority] {
		return fmt.Errorf("invalid ntfy priority: %s (valid: min, low, default, high, urgent)", c.Priority)
	}

	return nil
}

// SMTPConfig describes the mail relay digests are submitted to.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Secure   bool   // implicit TLS; mandatory STARTTLS otherwise
	FromName string // display name on the From header
}
