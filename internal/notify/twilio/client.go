// Package twilio отправляет SMS через Twilio с ограничением частоты запросов.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/menoease/internal/config"
)

var (
	// ErrNoRecipient номер получателя пустой.
	ErrNoRecipient = errors.New("sms recipient is empty")
	// ErrNotConfigured не задан номер отправителя.
	ErrNotConfigured = errors.New("twilio is not configured")
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client отправитель SMS.
type Client struct {
	api     messageCreator
	from    string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient создает клиента Twilio по настройкам.
func NewClient(cfg config.Twilio, log *slog.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newClient(rest.Api, cfg.PhoneNumber, cfg.RatePerSec, log)
}

func newClient(api messageCreator, from string, perSec float64, log *slog.Logger) *Client {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	return &Client{
		api:     api,
		from:    from,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Send отправляет SMS на номер to. Ждет свободного слота лимитера или отмены ctx.
func (c *Client) Send(ctx context.Context, to, body string) error {
	const op = "twilio.Send"
	if c.from == "" {
		return fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	if to == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	msg, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if msg != nil && msg.Sid != nil {
		c.log.Debug("sms sent", slog.String("sid", *msg.Sid))
	}
	return nil
}
