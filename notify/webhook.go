package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wansing/editorial/core"
	"golang.org/x/time/rate"
)

const DefaultWebhookTimeout = 5 * time.Second

// WebhookSender posts every event as JSON to URL + "/" + topic.
type WebhookSender struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter // nil means unlimited
}

// NewWebhookSender returns a sender with the given request timeout. If perSecond is positive, requests are throttled.
func NewWebhookSender(url string, timeout time.Duration, perSecond float64) *WebhookSender {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	var s = &WebhookSender{
		url:    strings.TrimSuffix(url, "/"),
		client: &http.Client{Timeout: timeout},
	}
	if perSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return s
}

func (s *WebhookSender) Send(ctx context.Context, event core.Event) error {

	if s.url == "" || s.client == nil {
		return fmt.Errorf("webhook sender misconfigured")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/"+event.Topic(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}

	return nil
}
