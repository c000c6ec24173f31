package ingrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stevemurr/ingrain/types"
)

// RequestIDHeader carries a per-attempt request ID.
const RequestIDHeader = "X-Request-ID"

// call describes one remote operation. The body is encoded once so that
// retries resend identical bytes.
type call struct {
	server types.Server
	op     string
	method string
	path   string
	query  url.Values
	body   []byte
	retry  bool
}

func newCall(server types.Server, op, method, path string, in any) (*call, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, &types.ValidationError{Reason: fmt.Sprintf("failed to encode %s request", op), Err: err}
	}
	return &call{server: server, op: op, method: method, path: path, body: body}, nil
}

// invoke runs the call, retrying when both the call and the client allow it.
func (c *Client) invoke(ctx context.Context, cl *call, out any) error {
	if !cl.retry || c.retries == 0 {
		return c.roundTrip(ctx, cl, out)
	}
	return c.withRetry(ctx, cl, func() error {
		return c.roundTrip(ctx, cl, out)
	})
}

// roundTrip sends one attempt and maps the outcome onto the error taxonomy:
// no response is a NetworkError, a non-2xx status is a ServerError and an
// undecodable 2xx body is a DecodeError.
func (c *Client) roundTrip(ctx context.Context, cl *call, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL(cl.server).JoinPath(cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("ingrain: %s: failed to create request: %w", cl.op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(cl, "error", time.Since(start))
		c.logger.Debug("ingrain request failed",
			"op", cl.op, "server", cl.server, "url", u.String(), "request_id", requestID, "error", err)
		return &types.NetworkError{Server: cl.server, Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.observe(cl, "error", time.Since(start))
		return &types.NetworkError{Server: cl.server, Op: cl.op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	elapsed := time.Since(start)
	c.metrics.observe(cl, strconv.Itoa(resp.StatusCode), elapsed)
	c.logger.Debug("ingrain request",
		"op", cl.op, "server", cl.server, "url", u.String(), "request_id", requestID,
		"status", resp.StatusCode, "duration", elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.NewServerError(cl.server, cl.op, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &types.DecodeError{Server: cl.server, Op: cl.op, StatusCode: resp.StatusCode, Body: respBody, Err: err}
	}
	return nil
}
