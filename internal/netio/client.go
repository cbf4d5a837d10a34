// Package netio implements core.Network over net/http.
package netio

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/engage/internal/core"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	hc *http.Client
}

func NewClient() *Client {
	return &Client{
		hc: &http.Client{Timeout: defaultTimeout},
	}
}

// FetchAsync issues the request on its own goroutine and invokes cb exactly
// once with the outcome. Callers do not await completion.
func (c *Client) FetchAsync(ctx context.Context, url string, headers map[string]string, cb func(core.HTTPResponse, error)) {
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			cb(core.HTTPResponse{}, err)
			return
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			cb(core.HTTPResponse{}, err)
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			cb(core.HTTPResponse{}, err)
			return
		}

		out := core.HTTPResponse{
			Status:  resp.StatusCode,
			Headers: make(map[string]string, len(resp.Header)),
			Body:    body,
		}
		for k := range resp.Header {
			out.Headers[k] = resp.Header.Get(k)
		}
		cb(out, nil)
	}()
}
