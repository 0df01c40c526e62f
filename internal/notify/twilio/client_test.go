package twilio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageCreator struct {
	mock.Mock
}

func (m *MockMessageCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openapi.ApiV2010Message), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Send(t *testing.T) {
	api := new(MockMessageCreator)
	sid := "SM123"
	api.On("CreateMessage", mock.MatchedBy(func(p *openapi.CreateMessageParams) bool {
		return *p.To == "+15551234567" && *p.From == "+15550000000" && *p.Body == "MenoEase Reminder: drink water"
	})).Return(&openapi.ApiV2010Message{Sid: &sid}, nil).Once()

	c := newClient(api, "+15550000000", 0, newNoopLogger())
	err := c.Send(context.Background(), "+15551234567", "MenoEase Reminder: drink water")

	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestClient_Send_ProviderError(t *testing.T) {
	api := new(MockMessageCreator)
	api.On("CreateMessage", mock.Anything).Return(nil, errors.New("invalid 'To' phone number")).Once()

	c := newClient(api, "+15550000000", 0, newNoopLogger())
	err := c.Send(context.Background(), "+1", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid 'To' phone number")
}

func TestClient_Send_EmptyRecipient(t *testing.T) {
	api := new(MockMessageCreator)
	c := newClient(api, "+15550000000", 0, newNoopLogger())

	err := c.Send(context.Background(), "", "hi")

	assert.ErrorIs(t, err, ErrNoRecipient)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestClient_Send_RateLimitRespectsContext(t *testing.T) {
	api := new(MockMessageCreator)
	api.On("CreateMessage", mock.Anything).Return(&openapi.ApiV2010Message{}, nil).Once()

	c := newClient(api, "+15550000000", 0.5, newNoopLogger())
	require.NoError(t, c.Send(context.Background(), "+15551234567", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Send(ctx, "+15551234567", "second")

	require.Error(t, err)
	api.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestClient_Send_NotConfigured(t *testing.T) {
	api := new(MockMessageCreator)

	c := newClient(api, "", 0, newNoopLogger())
	err := c.Send(context.Background(), "+15551234567", "hello")

	assert.ErrorIs(t, err, ErrNotConfigured)
	api.AssertNotCalled(t, "CreateMessage", mock.Anything)
}
