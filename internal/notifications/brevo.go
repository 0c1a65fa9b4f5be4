// Package notifications sends the transactional emails of the service
// through the Brevo SMTP API.
package notifications

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

	"wisebox-backend/internal/models"
	"wisebox-backend/internal/properties"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

var (
	ErrNoClient         = errors.New("brevo client is not configured")
	ErrMissingRecipient = errors.New("missing recipient email")
)

// APIError is a non-2xx answer from Brevo.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("brevo send failed: status=%d body=%s", e.Status, e.Message)
	}
	return fmt.Sprintf("brevo send failed: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type BrevoClient struct {
	apiKey     string
	sender     brevoContact
	sandbox    bool
	endpoint   string
	httpClient *http.Client
}

// NewBrevoClient returns nil when the key or sender address is missing, which
// callers treat as "mail disabled".
func NewBrevoClient(apiKey, senderEmail, senderName string, sandbox bool) *BrevoClient {
	apiKey, senderEmail = strings.TrimSpace(apiKey), strings.TrimSpace(senderEmail)
	if apiKey == "" || senderEmail == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoClient{
		apiKey:     apiKey,
		sender:     brevoContact{Email: senderEmail, Name: senderName},
		sandbox:    sandbox,
		endpoint:   defaultBrevoEndpoint,
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// WithEndpoint points the client at another send URL.
func (c *BrevoClient) WithEndpoint(endpoint string) *BrevoClient {
	if c != nil && strings.TrimSpace(endpoint) != "" {
		c.endpoint = endpoint
	}
	return c
}

func (c *BrevoClient) SendConsultationConfirmation(ctx context.Context, user models.User, consultation models.Consultation) (string, error) {
	body, err := buildConsultationConfirmationHTML(user, consultation)
	if err != nil {
		return "", err
	}
	return c.send(ctx, email{
		to:      user,
		subject: fmt.Sprintf("Consultation booked - %s", consultation.ServiceName),
		html:    body,
		tag:     "consultation-booked",
	})
}

func (c *BrevoClient) SendPropertyReceipt(ctx context.Context, user models.User, rec properties.Record) (string, error) {
	body, err := buildPropertyReceiptHTML(user, rec)
	if err != nil {
		return "", err
	}
	return c.send(ctx, email{
		to:      user,
		subject: fmt.Sprintf("Property submitted - reference %s", rec.ID),
		html:    body,
		tag:     "property-submitted",
	})
}

func (c *BrevoClient) SendVerificationCode(ctx context.Context, user models.User, code string, ttl time.Duration) (string, error) {
	body, err := buildAccountHTML(verificationCodeTmpl, user, code, "", ttl)
	if err != nil {
		return "", err
	}
	return c.send(ctx, email{
		to:      user,
		subject: fmt.Sprintf("Your Wisebox verification code: %s", code),
		html:    body,
		tag:     "signup-verification",
	})
}

func (c *BrevoClient) SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) (string, error) {
	body, err := buildAccountHTML(passwordResetTmpl, user, "", link, ttl)
	if err != nil {
		return "", err
	}
	return c.send(ctx, email{
		to:      user,
		subject: "Reset your Wisebox password",
		html:    body,
		tag:     "password-reset",
	})
}

type email struct {
	to      models.User
	subject string
	html    string
	tag     string
}

func (c *BrevoClient) send(ctx context.Context, m email) (string, error) {
	if c == nil {
		return "", ErrNoClient
	}
	if strings.TrimSpace(m.to.Email) == "" {
		return "", ErrMissingRecipient
	}

	payload := brevoSendRequest{
		Sender:      c.sender,
		To:          []brevoContact{{Email: m.to.Email, Name: m.to.Name}},
		Subject:     m.subject,
		HtmlContent: m.html,
	}
	if m.tag != "" {
		payload.Tags = []string{m.tag}
	}
	if c.sandbox {
		payload.Headers = map[string]string{"X-Sib-Sandbox": "drop"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("brevo marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", readAPIError(resp)
	}

	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brevo decode response: %w", err)
	}
	if out.MessageID == "" {
		return "", errors.New("brevo response missing messageId")
	}
	return out.MessageID, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	var decoded struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &decoded) == nil && decoded.Code != "" {
		apiErr.Code = decoded.Code
		apiErr.Message = decoded.Message
	}
	return apiErr
}

type brevoSendRequest struct {
	Sender      brevoContact      `json:"sender"`
	To          []brevoContact    `json:"to"`
	Subject     string            `json:"subject"`
	HtmlContent string            `json:"htmlContent"`
	Tags        []string          `json:"tags,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
