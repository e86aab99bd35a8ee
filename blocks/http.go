package blocks

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/strandlabs/strand/internal/domain"
	"github.com/strandlabs/strand/internal/ports"
)

// HTTPRequest performs one outbound HTTP call. The request honors the node's
// context, so per-node timeouts and run cancellation propagate to the wire.
type HTTPRequest struct {
	Base
	client *http.Client
}

func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (h *HTTPRequest) Execute(ctx context.Context, config map[string]interface{}, input interface{}, ectx ports.ExecutionContext) domain.NodeResult {
	url, err := requiredString(config, "url")
	if err != nil {
		return domain.FailedResult(err.Error())
	}
	method := strings.ToUpper(stringOption(config, "method", http.MethodGet))

	var body io.Reader
	if rawBody, present := config["body"]; present {
		switch b := rawBody.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return domain.FailedResult("failed to encode request body: " + err.Error())
			}
			body = strings.NewReader(string(encoded))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return domain.FailedResult("invalid request: " + err.Error())
	}
	if headers, ok := config["headers"].(map[string]interface{}); ok {
		for name, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(name, s)
			}
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.FailedResult("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.FailedResult("failed to read response body: " + err.Error())
	}

	var parsed interface{}
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") && len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			parsed = string(data)
		}
	} else {
		parsed = string(data)
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	output := map[string]interface{}{
		"status":  resp.StatusCode,
		"body":    parsed,
		"headers": headers,
	}

	if resp.StatusCode >= 400 && !boolOption(config, "allow_error_status", false) {
		result := domain.FailedResult("request returned status " + resp.Status)
		result.Output = output
		return result
	}
	return domain.CompletedResult(output)
}
