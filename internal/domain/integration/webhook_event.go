package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// WebhookEnvelope is the outer shape shared by every platform's webhook body
type WebhookEnvelope struct {
	Event   string          `json:"event"`
	EventID FlexString      `json:"event_id"`
	ShopID  FlexString      `json:"shop_id"`
	Data    json.RawMessage `json:"data"`
}

// FlexString accepts a JSON string or number. Platforms disagree on how ids
// are encoded.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the underlying string
func (f FlexString) String() string {
	return string(f)
}

// ParseEnvelope decodes and validates a webhook body. Malformed JSON wraps
// ErrMalformedPayload; missing event, data or shop_id wraps
// ErrMissingEnvelopeField.
func ParseEnvelope(raw []byte) (*WebhookEnvelope, error) {
	var env WebhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: event", ErrMissingEnvelopeField)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, fmt.Errorf("%w: data", ErrMissingEnvelopeField)
	}
	if env.ShopID == "" {
		return nil, fmt.Errorf("%w: shop_id", ErrMissingEnvelopeField)
	}
	return &env, nil
}

// WebhookEvent is the closed set of inbound platform events. Handling goes
// through EventHandler, so a new variant does not compile until every
// handler covers it.
type WebhookEvent interface {
	// Name is the platform-native event name
	Name() string
	Accept(h EventHandler) error
	sealed()
}

// EventHandler has one method per WebhookEvent variant
type EventHandler interface {
	OnOrderCreated(e OrderCreated) error
	OnOrderUpdated(e OrderUpdated) error
	OnOrderCancelled(e OrderCancelled) error
	OnProductUpdated(e ProductUpdated) error
	OnInventoryUpdated(e InventoryUpdated) error
	OnUnhandled(e UnhandledEvent) error
}

// OrderCreated is raised when a buyer places an order
type OrderCreated struct {
	Event           string
	PlatformOrderID string
	ProductIDs      []string
}

// OrderUpdated is raised on any order status change other than cancellation
type OrderUpdated struct {
	Event           string
	PlatformOrderID string
	PlatformStatus  string
}

// OrderCancelled is raised when an order is cancelled or closed
type OrderCancelled struct {
	Event           string
	PlatformOrderID string
	Reason          string
}

// ProductUpdated is raised when a product is edited on the platform
type ProductUpdated struct {
	Event             string
	PlatformProductID string
}

// InventoryUpdated carries the platform's new stock value as a hint
type InventoryUpdated struct {
	Event             string
	PlatformProductID string
	Stock             int
}

// UnhandledEvent is any event name the platform taxonomy does not act on
type UnhandledEvent struct {
	Event string
}

func (e OrderCreated) Name() string     { return e.Event }
func (e OrderUpdated) Name() string     { return e.Event }
func (e OrderCancelled) Name() string   { return e.Event }
func (e ProductUpdated) Name() string   { return e.Event }
func (e InventoryUpdated) Name() string { return e.Event }
func (e UnhandledEvent) Name() string   { return e.Event }

func (e OrderCreated) Accept(h EventHandler) error     { return h.OnOrderCreated(e) }
func (e OrderUpdated) Accept(h EventHandler) error     { return h.OnOrderUpdated(e) }
func (e OrderCancelled) Accept(h EventHandler) error   { return h.OnOrderCancelled(e) }
func (e ProductUpdated) Accept(h EventHandler) error   { return h.OnProductUpdated(e) }
func (e InventoryUpdated) Accept(h EventHandler) error { return h.OnInventoryUpdated(e) }
func (e UnhandledEvent) Accept(h EventHandler) error   { return h.OnUnhandled(e) }

func (OrderCreated) sealed()     {}
func (OrderUpdated) sealed()     {}
func (OrderCancelled) sealed()   {}
func (ProductUpdated) sealed()   {}
func (InventoryUpdated) sealed() {}
func (UnhandledEvent) sealed()   {}

// EventKind names a WebhookEvent variant in per-platform catalogs
type EventKind int

const (
	EventKindUnhandled EventKind = iota
	EventKindOrderCreated
	EventKindOrderUpdated
	EventKindOrderCancelled
	EventKindProductUpdated
	EventKindInventoryUpdated
)

// EventPayload is the normalized body fields a platform decoder extracts
type EventPayload struct {
	OrderID    string
	ProductID  string
	ProductIDs []string
	Status     string
	Reason     string
	Stock      *int
}

// BuildEvent assembles the variant for kind. Fields the variant requires
// but the payload lacks wrap ErrMissingEnvelopeField.
func BuildEvent(kind EventKind, name string, p EventPayload) (WebhookEvent, error) {
	switch kind {
	case EventKindOrderCreated:
		if p.OrderID == "" {
			return nil, fmt.Errorf("%w: data.order_id", ErrMissingEnvelopeField)
		}
		return OrderCreated{Event: name, PlatformOrderID: p.OrderID, ProductIDs: p.ProductIDs}, nil
	case EventKindOrderUpdated:
		if p.OrderID == "" {
			return nil, fmt.Errorf("%w: data.order_id", ErrMissingEnvelopeField)
		}
		return OrderUpdated{Event: name, PlatformOrderID: p.OrderID, PlatformStatus: p.Status}, nil
	case EventKindOrderCancelled:
		if p.OrderID == "" {
			return nil, fmt.Errorf("%w: data.order_id", ErrMissingEnvelopeField)
		}
		return OrderCancelled{Event: name, PlatformOrderID: p.OrderID, Reason: p.Reason}, nil
	case EventKindProductUpdated:
		if p.ProductID == "" {
			return nil, fmt.Errorf("%w: data.product_id", ErrMissingEnvelopeField)
		}
		return ProductUpdated{Event: name, PlatformProductID: p.ProductID}, nil
	case EventKindInventoryUpdated:
		if p.ProductID == "" {
			return nil, fmt.Errorf("%w: data.product_id", ErrMissingEnvelopeField)
		}
		if p.Stock == nil {
			return nil, fmt.Errorf("%w: data.stock", ErrMissingEnvelopeField)
		}
		return InventoryUpdated{Event: name, PlatformProductID: p.ProductID, Stock: *p.Stock}, nil
	default:
		return UnhandledEvent{Event: name}, nil
	}
}

// ParseStock reads a stock value platforms send as either number or string
func ParseStock(v FlexString) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return nil, fmt.Errorf("%w: stock %q", ErrMalformedPayload, v)
	}
	return &n, nil
}
