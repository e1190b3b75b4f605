package config

import "time"

type SecurityConfig interface {
	GetTheftDetectionWindow() time.Duration
	GetMaxRefreshTokenLength() int
	GetIssueAPIKey() string
}

type Security struct {
	TheftDetectionWindow  time.Duration `env:"THEFT_DETECTION_WINDOW" envDefault:"5m" validate:"gte=0s"`
	MaxRefreshTokenLength int           `env:"MAX_REFRESH_TOKEN_LENGTH" envDefault:"4096" validate:"min=64"`
	IssueAPIKey           string        `env:"ISSUE_API_KEY" validate:"required,min=16"`
}

var _ SecurityConfig = Security{}

func (s Security) GetTheftDetectionWindow() time.Duration {
	return s.TheftDetectionWindow
}

func (s Security) GetMaxRefreshTokenLength() int {
	return s.MaxRefreshTokenLength
}

// GetIssueAPIKey returns the shared key an upstream authenticator presents
// when asking for a new credential pair.
func (s Security) GetIssueAPIKey() string {
	return s.IssueAPIKey
}
