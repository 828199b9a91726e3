// Package removal talks to the external background-removal API. The API is
// a single synchronous POST: image in, background-stripped image out. Calls
// are never retried here; a rejection is a hard failure for whichever
// pipeline invoked it.
package removal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kdavid109/UpWake/internal/config"
)

// ErrServiceRejected wraps every non-200 response from the removal API.
var ErrServiceRejected = errors.New("background removal rejected")

type Client struct {
	endpoint string
	apiKey   string
	size     string
	format   string
	imgType  string
	bgColor  string
	http     *http.Client
}

func NewClient(cfg config.RemovalConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		size:     cfg.Size,
		format:   cfg.Format,
		imgType:  cfg.Type,
		bgColor:  cfg.BGColor,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type request struct {
	ImageFileB64 string `json:"image_file_b64,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	Size         string `json:"size"`
	Format       string `json:"format"`
	Type         string `json:"type,omitempty"`
	BGColor      string `json:"bg_color,omitempty"`
}

type errorBody struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// RemoveBytes sends the image inline as base64 and returns the processed
// image bytes.
func (c *Client) RemoveBytes(ctx context.Context, image []byte) ([]byte, error) {
	return c.do(ctx, request{
		ImageFileB64: base64.StdEncoding.EncodeToString(image),
		Size:         c.size,
		Format:       c.format,
		Type:         c.imgType,
		BGColor:      c.bgColor,
	})
}

// RemoveURL points the service at an already-resolvable image URL instead of
// shipping the bytes. Used by the worker path, where the blob is public to
// the store already.
func (c *Client) RemoveURL(ctx context.Context, imageURL string) ([]byte, error) {
	return c.do(ctx, request{
		ImageURL: imageURL,
		Size:     c.size,
		Format:   c.format,
		Type:     c.imgType,
		BGColor:  c.bgColor,
	})
}

func (c *Client) do(ctx context.Context, payload request) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal removal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build removal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call removal api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrServiceRejected, readError(resp.Body, resp.StatusCode))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read removal response: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrServiceRejected)
	}
	return out, nil
}

func readError(r io.Reader, status int) string {
	var body errorBody
	if err := json.NewDecoder(r).Decode(&body); err == nil && len(body.Errors) > 0 {
		return fmt.Sprintf("status %d: %s", status, body.Errors[0].Title)
	}
	return fmt.Sprintf("status %d", status)
}
