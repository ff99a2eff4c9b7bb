package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultPathMaxLength bounds the path portion of a resolved URL.
	DefaultPathMaxLength = 2048
	// DefaultURLMaxLength matches the shortest browser URL limit (IE8 GET).
	DefaultURLMaxLength      = 2083
	DefaultSiteNameMaxLength = 100
	DefaultResumeStateTTL    = time.Hour
)

// DefaultRPAPIs lists the relying-party API names accepted in rp_api.
var DefaultRPAPIs = []string{
	"get",
	"getVerifiedEmail",
	"watch_with_onready",
	"watch_without_onready",
	"request",
}

// Config holds deployment policy for the dialog parameter gate.
// Zero values are replaced by the Default* constants.
type Config struct {
	PathMaxLength     int `validate:"gt=1"`
	URLMaxLength      int `validate:"gtfield=PathMaxLength"`
	SiteNameMaxLength int `validate:"gt=0"`
	// RPAPIs is the closed set of values accepted for rp_api.
	RPAPIs []string `validate:"min=1,dive,required"`
	// ResumeStateTTL bounds how long idpVerification and returnTo survive.
	ResumeStateTTL time.Duration `validate:"gte=0"`
}

var configValidator = validator.New()

func (c Config) withDefaults() Config {
	if c.PathMaxLength == 0 {
		c.PathMaxLength = DefaultPathMaxLength
	}
	if c.URLMaxLength == 0 {
		c.URLMaxLength = DefaultURLMaxLength
	}
	if c.SiteNameMaxLength == 0 {
		c.SiteNameMaxLength = DefaultSiteNameMaxLength
	}
	if len(c.RPAPIs) == 0 {
		c.RPAPIs = append([]string(nil), DefaultRPAPIs...)
	}
	if c.ResumeStateTTL == 0 {
		c.ResumeStateTTL = DefaultResumeStateTTL
	}
	return c
}

// Normalize fills defaults and validates the result.
func (c Config) Normalize() (Config, error) {
	c = c.withDefaults()
	if err := configValidator.Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid dialog config: %w", err)
	}
	return c, nil
}

func (c Config) rpAPIAllowed(name string) bool {
	for _, v := range c.RPAPIs {
		if v == name {
			return true
		}
	}
	return false
}
