package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	payloadDocIDKey   = "_rag_doc_id"
	maxErrorBodyBytes = 1024
)

var pointIDNamespace = uuid.MustParse("7b7e7f3a-9b1d-4e6a-9c9e-4a5b6c7d8e9f")

// QdrantConfig describes how to reach a single Qdrant collection.
type QdrantConfig struct {
	URL        string
	Collection string
	VectorDim  int
	Timeout    time.Duration
}

// QdrantIndex is a REST-based Qdrant client scoped to one collection,
// modeled on the platform vector store: deterministic point IDs derived
// from the document ID, envelope-aware error classification, and
// distance-aware score normalization.
type QdrantIndex struct {
	cfg      QdrantConfig
	baseURL  string
	distance string
	http     *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantSearchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// NewQdrantIndex validates the collection exists and matches cfg.VectorDim,
// recording the collection's distance metric for score normalization.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("vectorindex: qdrant url required")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("vectorindex: qdrant collection required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	idx := &QdrantIndex{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	if err := idx.verifyReady(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) verifyReady(ctx context.Context) error {
	const op = "verify_ready"
	var result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := q.doJSON(ctx, op, http.MethodGet, q.collectionPath(""), nil, &result); err != nil {
		return err
	}
	size := result.Config.Params.Vectors.Size
	if size != 0 && q.cfg.VectorDim != 0 && size != q.cfg.VectorDim {
		return &OperationError{
			Op:        op,
			Err:       fmt.Errorf("collection %q vector size mismatch: expected=%d actual=%d", q.cfg.Collection, q.cfg.VectorDim, size),
			Permanent: true,
		}
	}
	q.distance = strings.ToLower(strings.TrimSpace(result.Config.Params.Vectors.Distance))
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return &OperationError{Op: op, Err: errors.New("point id required"), Permanent: true}
		}
		payload := clonePayload(p.Payload)
		payload[payloadDocIDKey] = p.ID
		body = append(body, map[string]any{
			"id":      pointID(p.ID),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	req := map[string]any{"points": body}
	return q.doJSON(ctx, op, http.MethodPut, q.collectionPath("/points?wait=true"), req, nil)
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, &OperationError{Op: op, Err: errors.New("query vector required"), Permanent: true}
	}
	if topK <= 0 {
		topK = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	var items []qdrantSearchItem
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/search"), req, &items); err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(items))
	for _, item := range items {
		id := extractDocID(item)
		if id == "" {
			continue
		}
		out = append(out, Match{ID: id, Score: q.normalizeScore(item.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (q *QdrantIndex) DeleteIDs(ctx context.Context, ids []string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		pointIDs = append(pointIDs, pointID(id))
	}
	if len(pointIDs) == 0 {
		return nil
	}
	req := map[string]any{"points": pointIDs}
	return q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points/delete?wait=true"), req, nil)
}

func (q *QdrantIndex) Payload(ctx context.Context, id string) (map[string]any, bool, error) {
	const op = "retrieve"
	req := map[string]any{"ids": []string{pointID(id)}, "with_payload": true, "with_vector": false}
	var items []qdrantSearchItem
	if err := q.doJSON(ctx, op, http.MethodPost, q.collectionPath("/points"), req, &items); err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items[0].Payload, true, nil
}

func (q *QdrantIndex) Close() error { return nil }

func (q *QdrantIndex) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return &OperationError{Op: op, Err: err, Permanent: true}
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, body)
	if err != nil {
		return &OperationError{Op: op, Err: err, Permanent: true}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if err != nil {
		return &OperationError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Op:        op,
			Err:       fmt.Errorf("http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
			Permanent: resp.StatusCode >= 400 && resp.StatusCode < 500,
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &OperationError{Op: op, Err: err}
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{Op: op, Err: errors.New(statusErr)}
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &OperationError{Op: op, Err: err}
	}
	return nil
}

func classifyHTTPCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &OperationError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &OperationError{Op: op, Err: err}
	}
	return &OperationError{Op: op, Err: err, Permanent: true}
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func clonePayload(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pointID(docID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(docID)).String()
}

func extractDocID(item qdrantSearchItem) string {
	if raw, ok := item.Payload[payloadDocIDKey].(string); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	return ""
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return "/collections/" + q.cfg.Collection + suffix
}

// normalizeScore maps Qdrant's raw similarity score onto [0, 1] according
// to the collection's configured distance metric.
func (q *QdrantIndex) normalizeScore(score float64) float64 {
	switch q.distance {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default: // cosine, dot
		mapped := (score + 1) / 2
		if mapped < 0 {
			return 0
		}
		if mapped > 1 {
			return 1
		}
		return mapped
	}
}
