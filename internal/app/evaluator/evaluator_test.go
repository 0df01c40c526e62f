package evaluator

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/menoease/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	t.Run("missing emailjs keys", func(t *testing.T) {
		_, err := New(&config.Config{}, newNoopLogger(), nil, nil)
		assert.ErrorIs(t, err, config.ErrMissingCredentials)
	})

	t.Run("builds both services without twilio", func(t *testing.T) {
		cfg := &config.Config{
			EmailJS: config.EmailJS{ServiceID: "service_1", PublicKey: "pub_1", BaseURL: "https://api.emailjs.com"},
			Scheduler: config.Scheduler{
				ReportTimezone:    config.ReportTimezoneUser,
				EvaluatorTimezone: "UTC",
			},
		}
		svcs, err := New(cfg, newNoopLogger(), nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, svcs.Reminders)
		assert.NotNil(t, svcs.Reports)
	})
}
