// Package client talks to a running relayd: health over the control socket
// and the JSON API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// APIError is a non-2xx response from the HTTP API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relayd returned %d: %s", e.Code, e.Message)
}

// Client wraps the control connection and the HTTP API of the daemon.
type Client struct {
	conn    *grpc.ClientConn
	Health  healthpb.HealthClient
	baseURL string
	http    *http.Client
}

// New dials the daemon's Unix domain socket. httpAddr is host:port or a full
// base URL.
func New(socketPath, httpAddr string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	base := strings.TrimRight(httpAddr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		conn:    conn,
		Health:  healthpb.NewHealthClient(conn),
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status checks the health of service ("" for the whole daemon).
func (c *Client) Status(ctx context.Context, service string) (*healthpb.HealthCheckResponse, error) {
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return resp, nil
}

// Do sends data wrapped in a {"data": ...} envelope and decodes the
// response's data member into out. A nil data sends no body; a nil out
// discards the response.
func (c *Client) Do(ctx context.Context, method, path string, data, out any) error {
	var body io.Reader
	if data != nil {
		buf, err := json.Marshal(map[string]any{"data": data})
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(env.Data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
