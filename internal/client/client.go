// Package client speaks the viewer daemon's HTTP API. The dispatcher uses the
// same client whether the daemon is a remote listener or a short-lived local
// viewer on a loopback port.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meshkit/meshview/internal/api"
	"github.com/meshkit/meshview/internal/model"
)

const defaultUnaryTimeout = 10 * time.Second

type Client struct {
	baseURL      string
	client       *http.Client
	unaryTimeout time.Duration
}

func New(host string, port int, connectTimeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	baseURL := "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	return NewWithClient(baseURL, &http.Client{Transport: transport})
}

func NewWithClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		unaryTimeout: defaultUnaryTimeout,
	}
}

func (c *Client) WithUnaryTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	clone := *c
	clone.unaryTimeout = timeout
	return &clone
}

type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("viewer returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("viewer returned %d", e.StatusCode)
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	body, err := c.request(ctx, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode health response: %w", err)
	}
	return resp, nil
}

func (c *Client) State(ctx context.Context) (api.StateEnvelope, error) {
	var resp api.StateEnvelope
	body, err := c.request(ctx, http.MethodGet, "/v1/state", nil)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode state response: %w", err)
	}
	return resp, nil
}

// SetScene replaces the content of one subwindow with the given meshes.
func (c *Client) SetScene(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) (api.SceneResponse, error) {
	req := api.SceneRequest{
		Subwindow: api.SubwindowRef{IX: coord.IX, IY: coord.IY},
		Meshes:    make([]api.MeshPayload, 0, len(meshes)),
	}
	for _, m := range meshes {
		req.Meshes = append(req.Meshes, api.MeshPayload{
			MeshID:    m.MeshID,
			Name:      m.Name,
			Format:    string(m.Format),
			SizeBytes: int64(len(m.Payload)),
			Payload:   m.Payload,
		})
	}
	var resp api.SceneResponse
	body, err := c.request(ctx, http.MethodPost, "/v1/scene", req)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode scene response: %w", err)
	}
	return resp, nil
}

// Snapshot asks the viewer to capture its current content to path. The path is
// interpreted on the viewer's side of the connection.
func (c *Client) Snapshot(ctx context.Context, path string) (api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	body, err := c.request(ctx, http.MethodPost, "/v1/snapshot", api.SnapshotRequest{Path: path})
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("decode snapshot response: %w", err)
	}
	return resp, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqCtx := ctx
	if c.unaryTimeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.unaryTimeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.unaryTimeout)
			defer cancel()
		}
	}
	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = buf
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var er api.ErrorResponse
		if err := json.Unmarshal(payload, &er); err == nil && er.Error.Code != "" {
			return nil, &RequestError{
				StatusCode: resp.StatusCode,
				Code:       er.Error.Code,
				Message:    er.Error.Message,
			}
		}
		return nil, &RequestError{StatusCode: resp.StatusCode}
	}
	return payload, nil
}
