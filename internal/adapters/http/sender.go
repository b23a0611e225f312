package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/metricship/internal/collector"
	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/encoding"
	"github.com/bft-labs/metricship/pkg/log"
)

// UserAgent is sent with every publish request.
const UserAgent = "metricship/1"

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Endpoint is the full publish URI.
	Endpoint string

	// AuthKey is sent as a bearer token when set.
	AuthKey string

	// Step aligns sample timestamps.
	Step time.Duration

	// Timeout bounds a single request including the response body.
	Timeout time.Duration

	// Gzip compresses request bodies.
	Gzip bool

	// Hostname is reported in X-Agent-Hostname.
	Hostname string
}

// Sender implements ports.BatchSender over HTTP.
type Sender struct {
	cfg       SenderConfig
	encoder   encoding.Encoder
	collector *collector.Collector
	logger    log.Logger
}

// NewSender creates a Sender. A nil encoder selects msgpack.
func NewSender(cfg SenderConfig, enc encoding.Encoder, c *collector.Collector, logger log.Logger) *Sender {
	if enc == nil {
		enc = encoding.MsgpackEncoder{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Sender{cfg: cfg, encoder: enc, collector: c, logger: logger}
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// publishReply is the optional JSON acknowledgement of the endpoint.
type publishReply struct {
	Accepted *int `json:"accepted"`
}

// Send transmits chunk and returns the number of samples accepted.
func (s *Sender) Send(ctx context.Context, tags domain.TagList, chunk domain.Chunk) (int, error) {
	if chunk.Empty() {
		return 0, nil
	}

	update, err := encoding.NewUpdate(tags, chunk.Samples, s.cfg.Step)
	if err != nil {
		return 0, err
	}
	if dropped := chunk.Size() - len(update.Metrics); dropped > 0 {
		s.logger.Debug("skipping non-numeric samples", log.Int("dropped", dropped))
	}
	if len(update.Metrics) == 0 {
		return 0, nil
	}

	payload, err := s.encoder.Encode(update)
	if err != nil {
		return 0, fmt.Errorf("encode update: %w", err)
	}
	if s.cfg.Gzip {
		if payload, err = compress(payload); err != nil {
			return 0, fmt.Errorf("compress update: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", s.encoder.ContentType())
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	if s.cfg.Hostname != "" {
		req.Header.Set("X-Agent-Hostname", s.cfg.Hostname)
	}
	if s.cfg.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if s.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.AuthKey)
	}

	resp, err := s.collector.Get(ctx, req, s.cfg.Timeout)
	if err != nil {
		return 0, err
	}
	if resp.Status/100 != 2 {
		return 0, &StatusError{Status: resp.Status, Body: string(resp.Body)}
	}

	sent := len(update.Metrics)
	var reply publishReply
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &reply) == nil && reply.Accepted != nil {
		if accepted := max(*reply.Accepted, 0); accepted < sent {
			s.logger.Warn("endpoint accepted fewer samples than sent",
				log.String("request_id", requestID),
				log.Int("sent", sent),
				log.Int("accepted", *reply.Accepted),
			)
			sent = accepted
		}
	}

	s.logger.Debug("batch sent",
		log.String("request_id", requestID),
		log.Int("samples", sent),
		log.Int("bytes", len(payload)),
	)
	return sent, nil
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
