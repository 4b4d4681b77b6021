package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client is an Index backed by a remote index server.
type Client struct {
	base       string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(c *Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient returns a client for the index server at addr. The address is
// either host:port or a base URL.
func NewClient(addr string, opts ...ClientOption) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{base: base, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the address of a peer sharing the file.
func (c *Client) Lookup(ctx context.Context, fileName string) (string, error) {
	res, err := c.do(ctx, http.MethodGet, "/sharedfiles/"+url.PathEscape(fileName), nil)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, errorMessage(res))
	default:
		return "", unexpected(res)
	}
	var msg FileMessage
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decoding lookup response: %w", err)
	}
	return msg.HostAddress, nil
}

// Register records the peer as sharing the file.
func (c *Client) Register(ctx context.Context, fileName, peerAddr string) error {
	body, err := json.Marshal(FileMessage{FileName: fileName, HostAddress: peerAddr})
	if err != nil {
		return fmt.Errorf("encoding file message: %w", err)
	}
	res, err := c.do(ctx, http.MethodPost, "/sharedfiles", body)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadyShared, errorMessage(res))
	default:
		return unexpected(res)
	}
}

// Deregister removes the record of the peer sharing the file.
func (c *Client) Deregister(ctx context.Context, fileName, peerAddr string) error {
	return c.record(ctx, http.MethodDelete, fileName, peerAddr, http.StatusNoContent)
}

// Check affirms that the peer shares the file.
func (c *Client) Check(ctx context.Context, fileName, peerAddr string) error {
	return c.record(ctx, http.MethodGet, fileName, peerAddr, http.StatusOK)
}

// Files lists every file shared through the index.
func (c *Client) Files(ctx context.Context) ([]string, error) {
	res, err := c.do(ctx, http.MethodGet, "/sharedfiles", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, unexpected(res)
	}
	var files []string
	if err := json.NewDecoder(res.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decoding file list: %w", err)
	}
	return files, nil
}

// Ping reports whether the index server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.do(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return unexpected(res)
	}
	return nil
}

func (c *Client) record(ctx context.Context, method, fileName, peerAddr string, want int) error {
	res, err := c.do(ctx, method, recordPath(fileName, peerAddr), nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case want:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotShared, errorMessage(res))
	default:
		return unexpected(res)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating index request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting index server: %w", err)
	}
	return res, nil
}

// errorMessage returns the message of an ErrorMessage body, the status text
// if the body is not one.
func errorMessage(res *http.Response) string {
	var msg ErrorMessage
	if err := json.NewDecoder(res.Body).Decode(&msg); err != nil || msg.Message == "" {
		return http.StatusText(res.StatusCode)
	}
	return msg.Message
}

func unexpected(res *http.Response) error {
	return fmt.Errorf("unexpected index response %d: %s", res.StatusCode, errorMessage(res))
}
