package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient is the default implementation of MediaClient, StatusClient and
// SearchClient against a Mastodon-compatible REST API.
//
// Search calls are rate limited client-side: autocomplete fires on keystrokes
// and the server's limits are easy to trip while typing.
type HTTPClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	searchLimit *rate.Limiter
}

// Ensure HTTPClient implements the capability interfaces.
var (
	_ MediaClient  = (*HTTPClient)(nil)
	_ StatusClient = (*HTTPClient)(nil)
	_ SearchClient = (*HTTPClient)(nil)
)

// NewHTTPClient creates a client for the instance at baseURL authenticated
// with accessToken.
func NewHTTPClient(baseURL, accessToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			// 60s to accommodate large media uploads on slow links
			Timeout: 60 * time.Second,
		},
		searchLimit: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// progressReader wraps a reader and reports the fraction consumed.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onProgress != nil && p.total > 0 {
		p.read += int64(n)
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.onProgress(frac)
	}
	return n, err
}

// UploadMedia uploads media bytes via the v2 media endpoint.
// A 202 response means the server is still processing; the returned
// attachment will have a nil URL and callers should poll GetAttachment.
func (c *HTTPClient) UploadMedia(ctx context.Context, data []byte, mimeType string, description string, onProgress ProgressFunc) (*Attachment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("media data cannot be empty")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", fileNameForMime(mimeType))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write media bytes: %w", err)
	}
	if description != "" {
		if err := w.WriteField("description", description); err != nil {
			return nil, fmt.Errorf("failed to write description field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	reader := &progressReader{r: &body, total: int64(body.Len()), onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/media", reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(body.Len())
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media upload request failed: %w", err)
	}
	defer closeBody(resp.Body, "media upload")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, wrapStatusError("media upload", resp.StatusCode, truncateBody(respBody))
	}

	var att Attachment
	if err := json.Unmarshal(respBody, &att); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if att.ID == "" {
		return nil, fmt.Errorf("upload response missing attachment id")
	}
	return &att, nil
}

// GetAttachment fetches the current attachment state. While the server is
// still processing it answers 206 with a partial body; that is surfaced as a
// nil-URL attachment, not an error.
func (c *HTTPClient) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	if id == "" {
		return nil, fmt.Errorf("attachment id cannot be empty")
	}
	var att Attachment
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/media/"+url.PathEscape(id), nil, &att, "get attachment"); err != nil {
		return nil, err
	}
	return &att, nil
}

// UpdateAttachment sets the attachment description (alt text).
func (c *HTTPClient) UpdateAttachment(ctx context.Context, id string, description string) (*Attachment, error) {
	if id == "" {
		return nil, fmt.Errorf("attachment id cannot be empty")
	}
	payload := map[string]string{"description": description}
	var att Attachment
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/media/"+url.PathEscape(id), payload, &att, "update attachment"); err != nil {
		return nil, err
	}
	return &att, nil
}

// CreateStatus posts a new status.
func (c *HTTPClient) CreateStatus(ctx context.Context, payload StatusPayload) (*Status, error) {
	var status Status
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/statuses", payload, &status, "create status"); err != nil {
		return nil, err
	}
	return &status, nil
}

// EditStatus updates an existing status in place.
func (c *HTTPClient) EditStatus(ctx context.Context, id string, payload StatusPayload) (*Status, error) {
	if id == "" {
		return nil, fmt.Errorf("status id cannot be empty")
	}
	var status Status
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/statuses/"+url.PathEscape(id), payload, &status, "edit status"); err != nil {
		return nil, err
	}
	return &status, nil
}

// SearchHashtags returns hashtag candidates for the partial tag.
func (c *HTTPClient) SearchHashtags(ctx context.Context, query string) ([]Tag, error) {
	if err := c.searchLimit.Wait(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Hashtags []Tag `json:"hashtags"`
	}
	path := "/api/v2/search?type=hashtags&q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result, "search hashtags"); err != nil {
		return nil, err
	}
	return result.Hashtags, nil
}

// SearchAccounts returns account candidates for the partial acct.
func (c *HTTPClient) SearchAccounts(ctx context.Context, query string) ([]Account, error) {
	if err := c.searchLimit.Wait(ctx); err != nil {
		return nil, err
	}
	var result struct {
		Accounts []Account `json:"accounts"`
	}
	path := "/api/v2/search?type=accounts&q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result, "search accounts"); err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

// doJSON performs a JSON request/response round trip against the API.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: failed to encode payload: %w", operation, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", operation, err)
	}
	defer closeBody(resp.Body, operation)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", operation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wrapStatusError(operation, resp.StatusCode, truncateBody(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: failed to parse response: %w", operation, err)
		}
	}
	return nil
}

func closeBody(body io.Closer, operation string) {
	if err := body.Close(); err != nil {
		log.Printf("Warning: failed to close %s response body: %v", operation, err)
	}
}

// truncateBody trims server error bodies so log lines and error messages
// stay bounded.
func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "... (truncated)"
	}
	return s
}

func fileNameForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "upload.jpg"
	case "image/png":
		return "upload.png"
	case "image/gif":
		return "upload.gif"
	case "image/webp":
		return "upload.webp"
	case "video/mp4":
		return "upload.mp4"
	case "video/quicktime":
		return "upload.mov"
	default:
		return "upload.bin"
	}
}
