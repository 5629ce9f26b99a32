// Package storage implements domain.StoragePort against the collaborator
// storage subsystem's internal HTTP API. File and folder lifecycle stays
// owned by that subsystem; this adapter only creates files from live byte
// streams and reports sizes.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type RESTClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewRESTClient(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		// No overall timeout: uploads stream arbitrarily large recordings.
		// Cancellation comes from the request context.
		httpClient = &http.Client{}
	}
	return &RESTClient{
		logger:     logger.With("adapter", "storage"),
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *RESTClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("storage API status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode storage response: %w", err)
		}
	}
	return nil
}

type folderResponse struct {
	ID uuid.UUID `json:"id"`
}

func (c *RESTClient) EnsureFolder(ctx context.Context, accountID uuid.UUID, name string) (uuid.UUID, error) {
	payload := map[string]string{"account_id": accountID.String(), "name": name}
	var resp folderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/folders/ensure", payload, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

type fileResponse struct {
	ID   uuid.UUID `json:"id"`
	Size int64     `json:"size"`
}

func (c *RESTClient) CreateFile(ctx context.Context, accountID, folderID uuid.UUID, name string) (uuid.UUID, error) {
	payload := map[string]string{
		"account_id": accountID.String(),
		"folder_id":  folderID.String(),
		"name":       name,
	}
	var resp fileResponse
	if err := c.doJSON(ctx, http.MethodPost, "/files", payload, &resp); err != nil {
		return uuid.Nil, err
	}
	return resp.ID, nil
}

// Upload pipes r through a chunked PUT; the stream is never buffered whole.
func (c *RESTClient) Upload(ctx context.Context, fileID uuid.UUID, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.apiURL+"/files/"+url.PathEscape(fileID.String())+"/content", r)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload status %d", resp.StatusCode)
	}
	c.logger.InfoContext(ctx, "upload complete", "file_id", fileID, "elapsed", time.Since(start))
	return nil
}

func (c *RESTClient) Stat(ctx context.Context, fileID uuid.UUID) (int64, error) {
	var resp fileResponse
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID.String()), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

func (c *RESTClient) PatchSize(ctx context.Context, fileID uuid.UUID, size int64) error {
	payload := map[string]int64{"size": size}
	return c.doJSON(ctx, http.MethodPatch, "/files/"+url.PathEscape(fileID.String()), payload, nil)
}
