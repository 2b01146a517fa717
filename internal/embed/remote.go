package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteEmbedder calls an external embedding endpoint over HTTP. The
// endpoint's concrete implementation (model choice, batching, auth) is out
// of scope here; this is the thin client the rest of the pipeline talks to.
type RemoteEmbedder struct {
	endpoint string
	dim      int
	client   *http.Client
}

// NewRemoteEmbedder returns a client posting {"text": ...} to endpoint and
// expecting {"embedding": [...]} of length dim back.
func NewRemoteEmbedder(endpoint string, dim int, timeout time.Duration) *RemoteEmbedder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteEmbedder{
		endpoint: strings.TrimRight(endpoint, "/"),
		dim:      dim,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *RemoteEmbedder) Dim() int { return r.dim }

func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("embed: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed: http status=%d body=%q", resp.StatusCode, raw)
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if r.dim > 0 && len(out.Embedding) != r.dim {
		return nil, fmt.Errorf("embed: dimension mismatch: expected=%d got=%d", r.dim, len(out.Embedding))
	}
	return out.Embedding, nil
}
