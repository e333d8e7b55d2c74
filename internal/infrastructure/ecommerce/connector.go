// Package ecommerce implements integration.Connector for each supported
// marketplace platform.
package ecommerce

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/integration"
)

// Endpoints are the API and OAuth URLs of one platform
type Endpoints struct {
	BaseURL  string
	TokenURL string
}

// Options are shared by every connector constructor
type Options struct {
	Endpoints  Endpoints
	HTTPClient *http.Client
	Rules      ValidationRules
	// Now is the clock used for request timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// chinaTime is the zone platform timestamps without offset are written in
var chinaTime = time.FixedZone("CST", 8*60*60)

const platformTimeLayout = "2006-01-02 15:04:05"

// parsePlatformTime reads a "2006-01-02 15:04:05" China-time timestamp.
// Empty or malformed values yield the zero time.
func parsePlatformTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(platformTimeLayout, s, chinaTime)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// parseDecimal reads a decimal string, treating malformed values as zero
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

const centsPerYuan = 100

func fromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(centsPerYuan))
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(centsPerYuan)).Round(0).IntPart()
}

// eventCatalog maps platform event names to event kinds. Names missing from
// the catalog decode as UnhandledEvent.
type eventCatalog map[string]integration.EventKind

// eventData is a platform's webhook data block
type eventData interface {
	payload() (integration.EventPayload, error)
}

// decodeEvent looks the envelope's event up in catalog and, for known
// events, decodes the data block into T.
func decodeEvent[T eventData](catalog eventCatalog, env *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	kind, ok := catalog[env.Event]
	if !ok {
		return integration.UnhandledEvent{Event: env.Event}, nil
	}
	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: data: %v", integration.ErrMalformedPayload, err)
	}
	p, err := data.payload()
	if err != nil {
		return nil, err
	}
	return integration.BuildEvent(kind, env.Event, p)
}

func flexStrings(values []integration.FlexString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v.String())
		}
	}
	return out
}
