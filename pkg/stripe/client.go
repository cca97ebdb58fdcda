package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
)

// Client holds one account's credentials. Every request carries the key
// explicitly so two clients never share global state.
type Client struct {
	env      string
	secret   string
	sessions SessionAPI
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	env := cfg.Environment()
	if err := checkKeyMode(env, key); err != nil {
		return nil, err
	}

	c := &Client{
		env:      env,
		secret:   secret,
		sessions: &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
	}
	logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe.client_ready")
	return c, nil
}

func (c *Client) Environment() string { return c.env }

// ConstructEvent checks the Stripe-Signature header and decodes the event.
// Account API version drift is tolerated; only checkout session fields are read.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, c.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// checkKeyMode refuses a live key in test mode and the reverse. Secret
// (sk_) and restricted (rk_) keys are both accepted.
func checkKeyMode(env, key string) error {
	if env != "test" && env != "live" {
		return fmt.Errorf("stripe environment must be \"test\" or \"live\", got %q", env)
	}
	kind, rest, ok := strings.Cut(key, "_")
	if !ok || (kind != "sk" && kind != "rk") {
		return fmt.Errorf("stripe api key must be a secret (sk_) or restricted (rk_) key")
	}
	if !strings.HasPrefix(rest, env+"_") {
		return fmt.Errorf("stripe environment %q requires a %s key", env, env)
	}
	return nil
}
