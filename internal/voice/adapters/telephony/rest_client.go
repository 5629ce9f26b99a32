// Package telephony implements domain.TelephonyPort against the provider's
// REST API (Twilio-dialect: basic auth, form-encoded writes, JSON reads).
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

type RESTClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	accountSID string
	authToken  string
}

func NewRESTClient(logger *slog.Logger, apiURL, accountSID, authToken string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{
		logger:     logger.With("adapter", "telephony"),
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *RESTClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telephony response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("telephony API error %d: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("telephony API status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode telephony response: %w", err)
		}
	}
	return nil
}

type availableNumbersResponse struct {
	AvailablePhoneNumbers []struct {
		PhoneNumber  string `json:"phone_number"`
		FriendlyName string `json:"friendly_name"`
		Region       string `json:"region"`
	} `json:"available_phone_numbers"`
}

func (c *RESTClient) SearchAvailable(ctx context.Context, areaCode string) ([]domain.AvailableNumber, error) {
	path := "/AvailablePhoneNumbers/Local.json"
	if areaCode != "" {
		path += "?AreaCode=" + url.QueryEscape(areaCode)
	}
	var resp availableNumbersResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	candidates := make([]domain.AvailableNumber, 0, len(resp.AvailablePhoneNumbers))
	for _, n := range resp.AvailablePhoneNumbers {
		candidates = append(candidates, domain.AvailableNumber{
			Number:       n.PhoneNumber,
			FriendlyName: n.FriendlyName,
			Region:       n.Region,
		})
	}
	return candidates, nil
}

func (c *RESTClient) IsAvailable(ctx context.Context, number string) (bool, error) {
	var resp availableNumbersResponse
	path := "/AvailablePhoneNumbers/Local.json?PhoneNumber=" + url.QueryEscape(number)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	for _, n := range resp.AvailablePhoneNumbers {
		if n.PhoneNumber == number {
			return true, nil
		}
	}
	return false, nil
}

type incomingNumberResponse struct {
	SID          string `json:"sid"`
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name"`
}

func (c *RESTClient) PurchaseNumber(ctx context.Context, number string) (string, string, error) {
	form := url.Values{}
	form.Set("PhoneNumber", number)
	var resp incomingNumberResponse
	if err := c.do(ctx, http.MethodPost, "/IncomingPhoneNumbers.json", form, &resp); err != nil {
		return "", "", err
	}
	c.logger.InfoContext(ctx, "number purchased", "number", number, "sid", resp.SID)
	return resp.SID, resp.FriendlyName, nil
}

func (c *RESTClient) ConfigureWebhooks(ctx context.Context, sid, voiceURL, statusURL string) error {
	form := url.Values{}
	form.Set("VoiceUrl", voiceURL)
	form.Set("VoiceMethod", "POST")
	form.Set("StatusCallback", statusURL)
	form.Set("StatusCallbackMethod", "POST")
	return c.do(ctx, http.MethodPost, "/IncomingPhoneNumbers/"+url.PathEscape(sid)+".json", form, nil)
}

func (c *RESTClient) ReleaseNumber(ctx context.Context, sid string) error {
	if err := c.do(ctx, http.MethodDelete, "/IncomingPhoneNumbers/"+url.PathEscape(sid)+".json", nil, nil); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "number released at provider", "sid", sid)
	return nil
}

type callResponse struct {
	SID           string `json:"sid"`
	Status        string `json:"status"`
	From          string `json:"from"`
	FromFormatted string `json:"from_formatted"`
	To            string `json:"to"`
	ToFormatted   string `json:"to_formatted"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (c *RESTClient) GetCall(ctx context.Context, callSID string) (*domain.CallInfo, error) {
	var resp callResponse
	if err := c.do(ctx, http.MethodGet, "/Calls/"+url.PathEscape(callSID)+".json", nil, &resp); err != nil {
		return nil, err
	}

	info := &domain.CallInfo{
		SID:           resp.SID,
		Status:        resp.Status,
		From:          resp.From,
		FromFormatted: resp.FromFormatted,
		To:            resp.To,
		ToFormatted:   resp.ToFormatted,
	}
	if resp.StartTime != "" {
		t, err := time.Parse(time.RFC1123Z, resp.StartTime)
		if err != nil {
			return nil, fmt.Errorf("parse call start time %q: %w", resp.StartTime, err)
		}
		info.StartedAt = t
	}
	if resp.EndTime != "" {
		t, err := time.Parse(time.RFC1123Z, resp.EndTime)
		if err != nil {
			return nil, fmt.Errorf("parse call end time %q: %w", resp.EndTime, err)
		}
		info.EndedAt = t
	}
	return info, nil
}

// OpenRecording streams the recording bytes with provider credentials. The
// caller owns closing the returned body.
func (c *RESTClient) OpenRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build recording request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open recording stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("recording fetch status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
