// Package vhost is the HTTP client for the backing video-hosting service.
// Every call authenticates with the credentials of one pool account.
package vhost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
)

// VideoInfo describes a finalized remote video
type VideoInfo struct {
	SecureURL       string   `json:"secureUrl"`
	DurationSeconds int      `json:"durationSeconds"`
	Variants        []string `json:"variants"`
}

// Client talks to the backing video host's REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new video host client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // chunk PUTs can be slow on large chunks
		},
	}
}

// setAuth applies the account's authentication headers
func setAuth(req *http.Request, cred pool.Credential) {
	req.Header.Set("AccessKey", cred.AuthKey)
	req.Header.Set("AccessSecret", cred.AuthSecret)
}

// decodeError drains the response body into a bounded error message
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("video host returned %d: %s", resp.StatusCode, string(body))
}

// CreateVideo registers a new video object under the account's library and
// returns its identifier
func (c *Client) CreateVideo(ctx context.Context, cred pool.Credential, title string) (string, error) {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("failed to encode create request: %w", err)
	}

	url := fmt.Sprintf("%s/library/%s/videos", c.baseURL, cred.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create remote video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}

	var result struct {
		VideoID string `json:"videoId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	if result.VideoID == "" {
		return "", fmt.Errorf("video host returned empty video id")
	}

	return result.VideoID, nil
}

// UploadChunk uploads one byte range of the video. The host assembles ranges
// by offset, so chunks can be retried individually.
func (c *Client) UploadChunk(ctx context.Context, cred pool.Credential, videoID string, chunk []byte, offset, totalSize int64) error {
	url := fmt.Sprintf("%s/library/%s/videos/%s", c.baseURL, cred.AccountID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("failed to build chunk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, totalSize))
	setAuth(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload chunk at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}

	return nil
}

// Finalize marks the upload complete and returns the playable video info
func (c *Client) Finalize(ctx context.Context, cred pool.Credential, videoID string) (*VideoInfo, error) {
	url := fmt.Sprintf("%s/library/%s/videos/%s/finalize", c.baseURL, cred.AccountID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build finalize request: %w", err)
	}
	setAuth(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize remote video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	info := &VideoInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("failed to decode finalize response: %w", err)
	}

	return info, nil
}

// RequestTranscode asks the host to produce derivative renditions of the video
func (c *Client) RequestTranscode(ctx context.Context, cred pool.Credential, videoID string, variants []string) error {
	payload, err := json.Marshal(map[string]any{"variants": variants})
	if err != nil {
		return fmt.Errorf("failed to encode transcode request: %w", err)
	}

	url := fmt.Sprintf("%s/library/%s/videos/%s/transcode", c.baseURL, cred.AccountID, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build transcode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req, cred)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request transcode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return decodeError(resp)
	}

	return nil
}
