package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alchemmist/lazy-rec/internal/host"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	base string
	http *http.Client
}

// NewClient accepts "host:port" or a full http URL.
func NewClient(addr string) *Client {
	base := strings.TrimSpace(addr)
	if base == "" {
		base = DefaultAddr
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Trigger(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/v1/triggers/"+url.PathEscape(name), http.StatusAccepted, nil)
}

func (c *Client) Status(ctx context.Context) (StatusView, error) {
	var st StatusView
	err := c.do(ctx, http.MethodGet, "/v1/status", http.StatusOK, &st)
	return st, err
}

func (c *Client) Sessions(ctx context.Context) ([]SessionView, error) {
	var out []SessionView
	err := c.do(ctx, http.MethodGet, "/v1/sessions", http.StatusOK, &out)
	return out, err
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), http.StatusNoContent, nil)
}

func (c *Client) Versions(ctx context.Context) (host.Versions, error) {
	var v host.Versions
	err := c.do(ctx, http.MethodGet, "/v1/versions", http.StatusOK, &v)
	return v, err
}

// Watch calls fn for every status event until ctx is done, fn returns false
// or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(StatusView) bool) error {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var st StatusView
		if err := conn.ReadJSON(&st); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if !fn(st) {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
