package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/brandops/platform-backend/internal/automation"
)

const defaultWebhookMaxBody = 64 * 1024

// WebhookCall posts a JSON document to an external endpoint. Params:
//
//	url     (string, required) http or https endpoint
//	method  (string, optional) defaults to POST
//	headers (object, optional) extra request headers
//	body    (object, optional) JSON body; {{path}} placeholders interpolated;
//	        when absent the trigger event payload is sent
//
// The request inherits the executor's per-action deadline through ctx. Any
// non-2xx response is a failure.
type WebhookCall struct {
	client      *http.Client
	maxBodySize int64
}

// WebhookParams configure the webhook-call handler.
type WebhookParams struct {
	Client      *http.Client
	MaxBodySize int64
}

// NewWebhookCall builds the webhook-call action handler.
func NewWebhookCall(params WebhookParams) *WebhookCall {
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxBody := params.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultWebhookMaxBody
	}
	return &WebhookCall{client: client, maxBodySize: maxBody}
}

func (a *WebhookCall) Type() string { return "webhook-call" }

func (a *WebhookCall) Execute(ctx context.Context, inv automation.Invocation) error {
	rawURL, _ := inv.Action.Params["url"].(string)
	if rawURL == "" {
		return fmt.Errorf("webhook-call requires a url param")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("webhook-call url %q is not a valid http(s) endpoint", rawURL)
	}

	method := http.MethodPost
	if raw, ok := inv.Action.Params["method"].(string); ok && raw != "" {
		method = raw
	}

	scope := inv.Trigger.ConditionScope()
	var body any
	if raw, ok := inv.Action.Params["body"]; ok {
		body = interpolateValue(raw, scope)
	} else if inv.Trigger.Event != nil {
		body = inv.Trigger.Event.Payload
	} else {
		body = map[string]any{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	if int64(len(encoded)) > a.maxBodySize {
		return fmt.Errorf("webhook body %d bytes exceeds limit %d", len(encoded), a.maxBodySize)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := inv.Action.Params["headers"].(map[string]any); ok {
		for key, value := range headers {
			if str, ok := value.(string); ok {
				req.Header.Set(key, interpolate(str, scope))
			}
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, a.maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
