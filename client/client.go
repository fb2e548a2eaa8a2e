// Package client talks to a running semd server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lhecker/semd/semaphore"
)

// StatusError is returned for responses the client has no sentinel for.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("bad status code: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("bad status code: %d %s", e.StatusCode, e.Message)
}

// NewHTTPClient returns a client suited for long polling.
// There is no overall timeout since a wait may block indefinitely;
// cancel the request context instead.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Client implements semaphore.Interface on top of the HTTP API.
type Client struct {
	http *http.Client
	base *url.URL
}

var _ semaphore.Interface = (*Client)(nil)

func New(httpClient *http.Client, baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{http: httpClient, base: base}, nil
}

func (c *Client) Create(value int) (semaphore.Handle, error) {
	var res struct {
		Handle semaphore.Handle `json:"handle"`
	}

	err := c.do(context.Background(), http.MethodPost, "/semaphores", map[string]int{"value": value}, &res)
	if err != nil {
		return semaphore.InvalidHandle, err
	}
	return res.Handle, nil
}

// Wait blocks until the server grants the wait or ctx is done.
func (c *Client) Wait(ctx context.Context, h semaphore.Handle) error {
	err := c.do(ctx, http.MethodPost, handlePath(h)+"/wait", nil, nil)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) Signal(h semaphore.Handle) error {
	return c.do(context.Background(), http.MethodPost, handlePath(h)+"/signal", nil, nil)
}

func (c *Client) Destroy(h semaphore.Handle) error {
	return c.do(context.Background(), http.MethodDelete, handlePath(h), nil, nil)
}

func (c *Client) Snapshot(ctx context.Context) ([]semaphore.SlotState, error) {
	var states []semaphore.SlotState
	err := c.do(ctx, http.MethodGet, "/semaphores", nil, &states)
	return states, err
}

func handlePath(h semaphore.Handle) string {
	return "/semaphores/" + strconv.Itoa(int(h))
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return statusError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func statusError(res *http.Response) error {
	switch res.StatusCode {
	case http.StatusNotFound:
		return semaphore.ErrInvalidHandle
	case http.StatusServiceUnavailable:
		return semaphore.ErrExhausted
	}

	var e struct {
		Error string `json:"error"`
	}
	err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&e)
	if err != nil && !errors.Is(err, io.EOF) {
		return &StatusError{StatusCode: res.StatusCode}
	}
	return &StatusError{StatusCode: res.StatusCode, Message: e.Error}
}
