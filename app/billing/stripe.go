package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type StripeGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewStripeGateway(apiKey, baseURL string, timeout time.Duration) *StripeGateway {
	return &StripeGateway{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type stripeListEnvelope struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type stripeProduct struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Active   bool              `json:"active"`
	Metadata map[string]string `json:"metadata"`
}

type stripePrice struct {
	ID         string            `json:"id"`
	Product    string            `json:"product"`
	Currency   string            `json:"currency"`
	UnitAmount int64             `json:"unit_amount"`
	Active     bool              `json:"active"`
	Recurring  *struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
	Metadata map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

type stripeSchedule struct {
	ID string `json:"id"`
}

func (g *StripeGateway) ListActiveProducts(ctx context.Context) ([]Product, error) {
	items := make([]Product, 0)
	err := g.listAll(ctx, "/v1/products", url.Values{"active": {"true"}}, func(raw json.RawMessage) error {
		var p stripeProduct
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		items = append(items, Product{ID: p.ID, Name: p.Name, Active: p.Active, Metadata: p.Metadata})
		return nil
	})
	if err != nil {
		return nil, &GatewayError{Op: "list products", Err: err}
	}
	return items, nil
}

func (g *StripeGateway) ListPrices(ctx context.Context, productID string) ([]Price, error) {
	items := make([]Price, 0)
	err := g.listAll(ctx, "/v1/prices", url.Values{"active": {"true"}, "product": {productID}}, func(raw json.RawMessage) error {
		var p stripePrice
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		price := Price{
			ID:         p.ID,
			ProductID:  p.Product,
			Currency:   p.Currency,
			UnitAmount: p.UnitAmount,
			Active:     p.Active,
			Metadata:   p.Metadata,
		}
		if p.Recurring != nil {
			price.Recurring = &Recurring{Interval: p.Recurring.Interval}
		}
		items = append(items, price)
		return nil
	})
	if err != nil {
		return nil, &GatewayError{Op: "list prices", Err: err}
	}
	return items, nil
}

func (g *StripeGateway) UpdateSubscription(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*Subscription, error) {
	values := url.Values{}
	values.Set("items[0][price]", priceID)
	values.Set("proration_behavior", "create_prorations")

	var sub stripeSubscription
	if err := g.doForm(ctx, http.MethodPost, "/v1/subscriptions/"+subscriptionID, values, idempotencyKey, &sub); err != nil {
		return nil, &GatewayError{Op: "update subscription", Err: err}
	}
	if sub.ID == "" {
		return nil, &GatewayError{Op: "update subscription", Err: errors.New("empty subscription in response")}
	}

	return &Subscription{
		ID:                 sub.ID,
		CustomerID:         sub.Customer,
		Status:             sub.Status,
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}, nil
}

func (g *StripeGateway) CreateSchedule(ctx context.Context, subscriptionID, priceID string, effectiveAt time.Time, idempotencyKey string) (*Schedule, error) {
	values := url.Values{}
	values.Set("from_subscription", subscriptionID)
	values.Set("phases[0][items][0][price]", priceID)
	values.Set("phases[0][start_date]", strconv.FormatInt(effectiveAt.Unix(), 10))

	var schedule stripeSchedule
	if err := g.doForm(ctx, http.MethodPost, "/v1/subscription_schedules", values, idempotencyKey, &schedule); err != nil {
		return nil, &GatewayError{Op: "create schedule", Err: err}
	}
	if schedule.ID == "" {
		return nil, &GatewayError{Op: "create schedule", Err: errors.New("empty schedule in response")}
	}

	return &Schedule{ID: schedule.ID}, nil
}

func (g *StripeGateway) ReleaseSchedule(ctx context.Context, scheduleID string) error {
	var schedule stripeSchedule
	if err := g.doForm(ctx, http.MethodPost, "/v1/subscription_schedules/"+scheduleID+"/release", nil, "", &schedule); err != nil {
		return &GatewayError{Op: "release schedule", Err: err}
	}
	return nil
}

func (g *StripeGateway) listAll(ctx context.Context, path string, params url.Values, collect func(json.RawMessage) error) error {
	startingAfter := ""
	for {
		query := url.Values{}
		for key, vals := range params {
			query[key] = vals
		}
		query.Set("limit", "100")
		if startingAfter != "" {
			query.Set("starting_after", startingAfter)
		}

		var envelope stripeListEnvelope
		if err := g.doForm(ctx, http.MethodGet, path+"?"+query.Encode(), nil, "", &envelope); err != nil {
			return err
		}

		for _, raw := range envelope.Data {
			if err := collect(raw); err != nil {
				return err
			}
		}
		if !envelope.HasMore || len(envelope.Data) == 0 {
			return nil
		}

		var last struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(envelope.Data[len(envelope.Data)-1], &last); err != nil || last.ID == "" {
			return errors.New("unpageable list response")
		}
		startingAfter = last.ID
	}
}

func (g *StripeGateway) doForm(ctx context.Context, method, path string, values url.Values, idempotencyKey string, out interface{}) error {
	if g.apiKey == "" {
		return errors.New("stripe api key is not configured")
	}

	body := ""
	if values != nil {
		body = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return fmt.Errorf("stripe request failed with status %d", resp.StatusCode)
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = fmt.Sprintf("stripe request failed with status %d", resp.StatusCode)
		}
		return errors.New(message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
