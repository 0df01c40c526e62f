package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/menoease/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/menoease/internal/notify/emailjs"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, templateID string, params map[string]string) error {
	args := m.Called(ctx, templateID, params)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSenderService_SendEmail(t *testing.T) {
	tests := []struct {
		name          string
		body          []byte
		setupMocks    func(*MockTransport)
		expectedError bool
		permanent     bool
		errorMessage  string
	}{
		{
			name: "success - send queued email",
			body: []byte(`{"template_id":"Meno_Upgrade","params":{"to_email":"jane@example.com","tier_name":"Premium"}}`),
			setupMocks: func(t *MockTransport) {
				t.On("Send", mock.Anything, "Meno_Upgrade", map[string]string{
					"to_email":  "jane@example.com",
					"tier_name": "Premium",
				}).Return(nil).Once()
			},
		},
		{
			name:          "invalid JSON is dead-lettered",
			body:          []byte(`invalid json`),
			setupMocks:    func(_ *MockTransport) {},
			expectedError: true,
			permanent:     true,
		},
		{
			name:          "missing template is dead-lettered",
			body:          []byte(`{"params":{"to_email":"jane@example.com"}}`),
			setupMocks:    func(_ *MockTransport) {},
			expectedError: true,
			permanent:     true,
		},
		{
			name: "rejected by provider is dead-lettered",
			body: []byte(`{"template_id":"Meno_Missing","params":{"to_email":"jane@example.com"}}`),
			setupMocks: func(t *MockTransport) {
				t.On("Send", mock.Anything, "Meno_Missing", mock.Anything).
					Return(fmt.Errorf("emailjs.Send: %w: %w: 400 Bad Request", emailjs.ErrSendFailed, emailjs.ErrRejected)).Once()
			},
			expectedError: true,
			permanent:     true,
			errorMessage:  "400 Bad Request",
		},
		{
			name: "transport error is returned for requeue",
			body: []byte(`{"template_id":"Meno_Welcome","params":{"to_email":"jane@example.com"}}`),
			setupMocks: func(t *MockTransport) {
				t.On("Send", mock.Anything, "Meno_Welcome", mock.Anything).Return(errors.New("emailjs: status 503")).Once()
			},
			expectedError: true,
			errorMessage:  "emailjs: status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			service := NewSenderService(newNoopLogger(), transport)

			tt.setupMocks(transport)

			err := service.Handler(context.Background())(tt.body)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMessage)
				assert.Equal(t, tt.permanent, errors.Is(err, rabbitmq.ErrPermanent))
			} else {
				assert.NoError(t, err)
			}

			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_NewSenderService(t *testing.T) {
	transport := new(MockTransport)
	logger := newNoopLogger()

	service := NewSenderService(logger, transport)

	assert.NotNil(t, service)
	assert.Equal(t, transport, service.transport)
	assert.Equal(t, logger, service.log)
}
