// Package client talks to a running node's HTTP API.
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

	"github.com/rudransh-shrivastava/peer-relay/internal/api"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API at addr, given as host:port or a
// full URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return resp, err
}

func (c *Client) Neighbors(ctx context.Context) ([]string, error) {
	var resp api.NeighborsResponse
	err := c.do(ctx, http.MethodGet, "/neighbors", nil, &resp)
	return resp.Neighbors, err
}

func (c *Client) Routes(ctx context.Context) (map[string]string, error) {
	var resp api.RoutesResponse
	err := c.do(ctx, http.MethodGet, "/routes", nil, &resp)
	return resp.Routes, err
}

func (c *Client) Transfers(ctx context.Context) ([]api.Transfer, error) {
	var resp api.TransfersResponse
	err := c.do(ctx, http.MethodGet, "/transfers", nil, &resp)
	return resp.Transfers, err
}

func (c *Client) Files(ctx context.Context) ([]string, error) {
	var resp api.FilesResponse
	err := c.do(ctx, http.MethodGet, "/files", nil, &resp)
	return resp.Files, err
}

// Join asks the node to join the node at addr and returns that node's id.
func (c *Client) Join(ctx context.Context, addr string) (string, error) {
	var resp api.JoinResponse
	err := c.do(ctx, http.MethodPost, "/join", api.JoinRequest{Addr: addr}, &resp)
	return resp.ID, err
}

func (c *Client) Send(ctx context.Context, destination, file string) error {
	return c.do(ctx, http.MethodPost, "/send", api.SendRequest{Destination: destination, File: file}, nil)
}

func (c *Client) Request(ctx context.Context, file string) error {
	return c.do(ctx, http.MethodPost, "/request", api.FileRequest{File: file}, nil)
}

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node answered %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting node at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
