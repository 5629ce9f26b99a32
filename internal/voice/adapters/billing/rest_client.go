// Package billing implements domain.BillingPort against the billing
// provider's REST API (Stripe-dialect: bearer key, form-encoded writes).
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

type RESTClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewRESTClient(logger *slog.Logger, apiURL, apiKey string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{
		logger:     logger.With("adapter", "billing"),
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
	}
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read billing response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			// The provider's message is user-visible by design; keep it intact.
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("billing API status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode billing response: %w", err)
		}
	}
	return nil
}

type priceResponse struct {
	ID        string `json:"id"`
	Recurring *struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
}

func (c *RESTClient) GetPrice(ctx context.Context, priceRef string) (*domain.Price, error) {
	var resp priceResponse
	if err := c.do(ctx, http.MethodGet, "/prices/"+url.PathEscape(priceRef), nil, &resp); err != nil {
		return nil, err
	}
	return &domain.Price{ID: resp.ID, Recurring: resp.Recurring != nil}, nil
}

type customerResponse struct {
	ID              string `json:"id"`
	InvoiceSettings struct {
		DefaultPaymentMethod string `json:"default_payment_method"`
	} `json:"invoice_settings"`
	DefaultSource string `json:"default_source"`
}

func (c *RESTClient) EnsureCustomer(ctx context.Context, a *domain.Account) (string, error) {
	if a.BillingCustomerID != "" {
		return a.BillingCustomerID, nil
	}
	form := url.Values{}
	form.Set("email", a.Email)
	form.Set("metadata[account_id]", a.ID.String())
	var resp customerResponse
	if err := c.do(ctx, http.MethodPost, "/customers", form, &resp); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "billing customer created", "account_id", a.ID, "customer_id", resp.ID)
	return resp.ID, nil
}

type paymentMethodListResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
	} `json:"data"`
}

// ResolvePaymentMethod tries the explicit id, the customer's default invoice
// method, the default funding source, and finally the most recently attached
// card, in that order.
func (c *RESTClient) ResolvePaymentMethod(ctx context.Context, customerID, explicitID string) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}

	var cust customerResponse
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &cust); err != nil {
		return "", err
	}
	if cust.InvoiceSettings.DefaultPaymentMethod != "" {
		return cust.InvoiceSettings.DefaultPaymentMethod, nil
	}
	if cust.DefaultSource != "" {
		return cust.DefaultSource, nil
	}

	var methods paymentMethodListResponse
	path := "/customers/" + url.PathEscape(customerID) + "/payment_methods?type=card&limit=10"
	if err := c.do(ctx, http.MethodGet, path, nil, &methods); err != nil {
		return "", err
	}
	latest := ""
	var latestCreated int64
	for _, m := range methods.Data {
		if m.Created >= latestCreated {
			latestCreated = m.Created
			latest = m.ID
		}
	}
	if latest == "" {
		return "", domain.ErrNoPaymentMethod
	}
	return latest, nil
}

type subscriptionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Items  struct {
		Data []struct {
			ID    string `json:"id"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			Quantity int `json:"quantity"`
		} `json:"data"`
	} `json:"items"`
}

func toSubscription(resp *subscriptionResponse) *domain.Subscription {
	sub := &domain.Subscription{ID: resp.ID, Status: resp.Status}
	for _, item := range resp.Items.Data {
		sub.Items = append(sub.Items, domain.SubscriptionItem{
			ID:       item.ID,
			PriceID:  item.Price.ID,
			Quantity: item.Quantity,
		})
	}
	return sub
}

func (c *RESTClient) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	var resp subscriptionResponse
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &resp); err != nil {
		return nil, err
	}
	return toSubscription(&resp), nil
}

func (c *RESTClient) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*domain.Subscription, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("items[0][price]", priceID)
	form.Set("items[0][quantity]", "1")
	form.Set("default_payment_method", paymentMethodID)
	form.Set("payment_behavior", "error_if_incomplete")
	var resp subscriptionResponse
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, &resp); err != nil {
		return nil, err
	}
	return toSubscription(&resp), nil
}

func (c *RESTClient) AddSubscriptionItem(ctx context.Context, subscriptionID, priceID string) (*domain.Subscription, error) {
	form := url.Values{}
	form.Set("subscription", subscriptionID)
	form.Set("price", priceID)
	form.Set("quantity", "1")
	form.Set("proration_behavior", "always_invoice")
	if err := c.do(ctx, http.MethodPost, "/subscription_items", form, nil); err != nil {
		return nil, err
	}
	return c.GetSubscription(ctx, subscriptionID)
}

func (c *RESTClient) SetItemQuantity(ctx context.Context, subscriptionID, itemID string, quantity int, prorate bool) (*domain.Subscription, error) {
	form := url.Values{}
	form.Set("quantity", strconv.Itoa(quantity))
	if prorate {
		form.Set("proration_behavior", "always_invoice")
	} else {
		form.Set("proration_behavior", "none")
	}
	if err := c.do(ctx, http.MethodPost, "/subscription_items/"+url.PathEscape(itemID), form, nil); err != nil {
		return nil, err
	}
	return c.GetSubscription(ctx, subscriptionID)
}

func (c *RESTClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(subscriptionID), nil, nil)
}

type paymentIntentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *RESTClient) ChargeOnce(ctx context.Context, customerID, priceID, paymentMethodID string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("price", priceID)
	form.Set("payment_method", paymentMethodID)
	form.Set("confirm", "true")
	var resp paymentIntentResponse
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *RESTClient) SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	sub, err := c.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}
