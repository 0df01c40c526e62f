// Package emailjs отправляет письма по шаблонам через REST API EmailJS.
package emailjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/menoease/internal/config"
)

const sendPath = "/api/v1.0/email/send"

// ErrSendFailed провайдер ответил не 200.
var ErrSendFailed = errors.New("emailjs send failed")

// ErrRejected провайдер отклонил запрос (4xx кроме 429), повтор не поможет.
var ErrRejected = errors.New("emailjs rejected request")

// Client клиент EmailJS.
type Client struct {
	serviceID  string
	publicKey  string
	privateKey string
	apiURL     string
	httpClient *http.Client
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// NewClient создаёт новый клиент EmailJS
func NewClient(cfg config.EmailJS) *Client {
	return &Client{
		serviceID:  cfg.ServiceID,
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		apiURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Send отправляет письмо по шаблону templateID с параметрами params.
func (c *Client) Send(ctx context.Context, templateID string, params map[string]string) error {
	const op = "emailjs.Send"
	req, err := c.newRequest(ctx, sendPath, sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     templateID,
		UserID:         c.publicKey,
		AccessToken:    c.privateKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		detail := strings.TrimSpace(string(text))
		if isRejected(resp.StatusCode) {
			return fmt.Errorf("%s: %w: %w: %s: %s", op, ErrSendFailed, ErrRejected, resp.Status, detail)
		}
		return fmt.Errorf("%s: %w: %s: %s", op, ErrSendFailed, resp.Status, detail)
	}
	return nil
}

func isRejected(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
