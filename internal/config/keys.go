package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoSlackToken is returned when no Slack bot token is configured.
var ErrNoSlackToken = errors.New("no Slack bot token configured")

// GetSlackToken returns the Slack bot token from the configuration.
// It checks in order: environment variable, config file.
func GetSlackToken(cfg *Config) (string, error) {
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		return token, nil
	}

	if cfg != nil && cfg.Slack.BotToken != "" {
		token := os.ExpandEnv(cfg.Slack.BotToken)
		if token != "" && !strings.HasPrefix(token, "${") {
			return token, nil
		}
	}

	return "", ErrNoSlackToken
}

// MaskToken returns a masked version of a token for display.
// Shows the first 5 characters (xoxb-) and last 4 characters.
func MaskToken(token string) string {
	if token == "" {
		return "(not set)"
	}

	if len(token) <= 12 {
		return "***"
	}

	return token[:5] + "..." + token[len(token)-4:]
}

// KeySource represents where a token was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetSlackTokenSource returns where the Slack token was sourced from.
func GetSlackTokenSource(cfg *Config) KeySource {
	if os.Getenv("SLACK_BOT_TOKEN") != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Slack.BotToken != "" {
		token := os.ExpandEnv(cfg.Slack.BotToken)
		if token != "" && !strings.HasPrefix(token, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
