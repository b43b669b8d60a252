package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	EventTypeSubscriptionCreated  = "customer.subscription.created"
	EventTypeSubscriptionUpdated  = "customer.subscription.updated"
	EventTypeSubscriptionDeleted  = "customer.subscription.deleted"
	EventTypeInvoicePaid          = "invoice.paid"
	EventTypeInvoicePaymentFailed = "invoice.payment_failed"
)

var (
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrEventIgnored marks event types this service does not consume; the
	// webhook handler acknowledges them so the gateway stops resending.
	ErrEventIgnored = errors.New("event ignored")
)

// Event is the normalized view of a gateway webhook. Only fields present in
// the payload are set; zero values mean "not carried by this event".
type Event struct {
	ID                 string
	Type               string
	CustomerID         string
	SubscriptionID     string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	StripeProductID    string
	StripePriceID      string
	Tier               int32
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeEventSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID       string            `json:"id"`
				Product  string            `json:"product"`
				Metadata map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeEventInvoice struct {
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var raw stripeEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrInvalidPayload
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, ErrInvalidPayload
	}

	switch strings.TrimSpace(raw.Type) {
	case EventTypeSubscriptionCreated, EventTypeSubscriptionUpdated, EventTypeSubscriptionDeleted:
		return parseSubscriptionEvent(raw)
	case EventTypeInvoicePaid, EventTypeInvoicePaymentFailed:
		return parseInvoiceEvent(raw)
	default:
		return nil, ErrEventIgnored
	}
}

func parseSubscriptionEvent(raw stripeEvent) (*Event, error) {
	var sub stripeEventSubscription
	if err := json.Unmarshal(raw.Data.Object, &sub); err != nil {
		return nil, ErrInvalidPayload
	}
	if sub.ID == "" || sub.Customer == "" {
		return nil, ErrInvalidPayload
	}

	ev := &Event{
		ID:                raw.ID,
		Type:              raw.Type,
		CustomerID:        sub.Customer,
		SubscriptionID:    sub.ID,
		Status:            strings.TrimSpace(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodStart > 0 {
		start := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		ev.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &end
	}
	if len(sub.Items.Data) > 0 {
		price := sub.Items.Data[0].Price
		ev.StripePriceID = price.ID
		ev.StripeProductID = price.Product
		if raw, ok := price.Metadata["tier"]; ok {
			if tier, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32); err == nil && tier >= 0 {
				ev.Tier = int32(tier)
			}
		}
	}

	return ev, nil
}

func parseInvoiceEvent(raw stripeEvent) (*Event, error) {
	var invoice stripeEventInvoice
	if err := json.Unmarshal(raw.Data.Object, &invoice); err != nil {
		return nil, ErrInvalidPayload
	}
	if invoice.Customer == "" {
		return nil, ErrInvalidPayload
	}

	return &Event{
		ID:             raw.ID,
		Type:           raw.Type,
		CustomerID:     invoice.Customer,
		SubscriptionID: invoice.Subscription,
	}, nil
}

// VerifySignature checks the Stripe-Signature header against the payload. The
// tolerance guards against replay of old signed payloads.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (timestamp string, signatures []string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("malformed signature header")
	}
	return timestamp, signatures, nil
}
