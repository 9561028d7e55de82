package config

import (
	"strings"
	"time"
)

// UIConfig tunes the checkout and payment screens.
type UIConfig struct {
	PaymentMethod        string        `env:"KRAMA_PAYMENT_METHOD"         envDefault:"QRIS"`
	ConfirmRedirectDelay time.Duration `env:"KRAMA_CONFIRM_REDIRECT_DELAY" envDefault:"3s"`
}

// Sanitize restores defaults for blank or negative values.
func (c *UIConfig) Sanitize() {
	if c.PaymentMethod = strings.TrimSpace(c.PaymentMethod); c.PaymentMethod == "" {
		c.PaymentMethod = "QRIS"
	}
	if c.ConfirmRedirectDelay <= 0 {
		c.ConfirmRedirectDelay = 3 * time.Second
	}
}
