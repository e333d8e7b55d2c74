package ecommerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/integration"
)

type kuaishouHandler func(r *http.Request, body map[string]any) KuaishouResponse

func kuaishouServer(t *testing.T, handlers map[string]kuaishouHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test_access_token", r.Header.Get("Authorization"))
		assert.Equal(t, "test_app_key", r.Header.Get("X-App-Key"))

		var body map[string]any
		if r.Method == http.MethodPost {
			raw, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(raw, &body))
			assert.NotEmpty(t, r.Header.Get(IdempotencyKeyHeader))
		}

		handler, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(handler(r, body))
	}))
	t.Cleanup(server.Close)
	return server
}

func kuaishouData(t *testing.T, v any) KuaishouResponse {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return KuaishouResponse{Result: 1, Data: raw}
}

func newTestKuaishouConnector(t *testing.T, serverURL string) *KuaishouConnector {
	t.Helper()
	return NewKuaishouConnector(newTestAccount(integration.PlatformCodeKuaishou), Options{
		Endpoints: Endpoints{BaseURL: serverURL},
		Rules:     DefaultRules().For(integration.PlatformCodeKuaishou),
		Now:       fixedClock,
	})
}

func TestKuaishouConnector_GetProduct(t *testing.T) {
	updated := time.Date(2024, 2, 28, 10, 0, 0, 0, time.UTC)
	server := kuaishouServer(t, map[string]kuaishouHandler{
		"/open/item/get": func(r *http.Request, _ map[string]any) KuaishouResponse {
			assert.Equal(t, "777", r.URL.Query().Get("kwaiItemId"))
			return kuaishouData(t, KuaishouItem{
				KwaiItemID:    777,
				RelItemID:     "SKU-7",
				Title:         "Tea Set",
				MainImageURLs: []string{"https://img.example.com/tea.jpg"},
				Price:         8800,
				ShelfStatus:   1,
				UpdateTime:    updated.UnixMilli(),
				Skus:          []KuaishouSku{{KwaiSkuID: 1, Stock: 5}, {KwaiSkuID: 2, Stock: 6}},
			})
		},
	})

	product, err := newTestKuaishouConnector(t, server.URL).GetProduct(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, "777", product.PlatformID)
	assert.Equal(t, "SKU-7", product.SKU)
	assert.True(t, decimal.NewFromInt(88).Equal(product.Price))
	assert.Nil(t, product.CompareAtPrice)
	assert.Equal(t, 11, product.Stock)
	assert.Equal(t, integration.ProductStatusActive, product.Status)
	assert.Equal(t, updated, product.UpdatedAt)
}

func TestKuaishouConnector_ResultCodes(t *testing.T) {
	tests := []struct {
		result int
		want   integration.ConnectorErrorCode
	}{
		{24, integration.ConnectorErrRateLimited},
		{28, integration.ConnectorErrUnauthorized},
		{404, integration.ConnectorErrNotFound},
		{803, integration.ConnectorErrPolicyRestricted},
		{500, integration.ConnectorErrServerError},
		{17, integration.ConnectorErrValidation},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			server := kuaishouServer(t, map[string]kuaishouHandler{
				"/open/shop/info": func(*http.Request, map[string]any) KuaishouResponse {
					return KuaishouResponse{Result: tt.result, ErrorMsg: "failed"}
				},
			})
			err := newTestKuaishouConnector(t, server.URL).HealthCheck(context.Background())
			requireConnectorError(t, err, tt.want)
		})
	}
}

func TestKuaishouConnector_Writes(t *testing.T) {
	var paths []string
	record := func(r *http.Request) { paths = append(paths, r.URL.Path) }
	server := kuaishouServer(t, map[string]kuaishouHandler{
		"/open/item/add": func(r *http.Request, body map[string]any) KuaishouResponse {
			record(r)
			assert.EqualValues(t, 9900, body["price"])
			return kuaishouData(t, kuaishouItemWrite{KwaiItemID: 42})
		},
		"/open/item/sku/stock/update": func(r *http.Request, body map[string]any) KuaishouResponse {
			record(r)
			assert.EqualValues(t, 42, body["kwaiItemId"])
			assert.EqualValues(t, 3, body["stock"])
			assert.Equal(t, "FULL", body["changeType"])
			return KuaishouResponse{Result: 1}
		},
		"/open/item/sku/price/update": func(r *http.Request, body map[string]any) KuaishouResponse {
			record(r)
			assert.EqualValues(t, 1999, body["price"])
			_, hasMarket := body["marketPrice"]
			assert.False(t, hasMarket)
			return KuaishouResponse{Result: 1}
		},
		"/open/seller/order/goods/deliver": func(r *http.Request, body map[string]any) KuaishouResponse {
			record(r)
			assert.Equal(t, "ZTO", body["expressCode"])
			assert.Equal(t, "ZT100", body["expressNo"])
			return KuaishouResponse{Result: 1}
		},
	})
	connector := newTestKuaishouConnector(t, server.URL)
	ctx := context.Background()

	created, err := connector.CreateProduct(ctx, validProduct())
	require.NoError(t, err)
	assert.Equal(t, "42", created.PlatformID)
	assert.Equal(t, fixedClock(), created.UpdatedAt)

	require.NoError(t, connector.UpdateStock(ctx, "42", 3))
	require.NoError(t, connector.UpdatePrice(ctx, "42", decimal.RequireFromString("19.99"), nil))
	require.NoError(t, connector.UpdateOrderStatus(ctx, "1001", integration.OrderStatusUpdate{
		Status: integration.OrderStatusShipped, TrackingNumber: "ZT100", Carrier: "ZTO",
	}))

	assert.Equal(t, []string{
		"/open/item/add",
		"/open/item/sku/stock/update",
		"/open/item/sku/price/update",
		"/open/seller/order/goods/deliver",
	}, paths)
}

func TestKuaishouConnector_RejectsLocallyBeforeCalling(t *testing.T) {
	server := kuaishouServer(t, map[string]kuaishouHandler{})
	connector := newTestKuaishouConnector(t, server.URL)
	ctx := context.Background()

	requireConnectorError(t, connector.UpdateStock(ctx, "42", -1), integration.ConnectorErrValidation)
	requireConnectorError(t, connector.UpdateStock(ctx, "abc", 1), integration.ConnectorErrValidation)
	requireConnectorError(t, connector.UpdatePrice(ctx, "42", decimal.Zero, nil), integration.ConnectorErrValidation)
	requireConnectorError(t, connector.UpdateOrderStatus(ctx, "1", integration.OrderStatusUpdate{Status: integration.OrderStatusCancelled}),
		integration.ConnectorErrPolicyRestricted)
	requireConnectorError(t, connector.UpdateOrderStatus(ctx, "1", integration.OrderStatusUpdate{Status: integration.OrderStatusShipped}),
		integration.ConnectorErrValidation)
}

func TestKuaishouConnector_Orders(t *testing.T) {
	server := kuaishouServer(t, map[string]kuaishouHandler{
		"/open/seller/order/pcursor/list": func(r *http.Request, _ map[string]any) KuaishouResponse {
			q := r.URL.Query()
			assert.Equal(t, "40", q.Get("pcursor"))
			assert.Equal(t, "20", q.Get("pageSize"))
			assert.Equal(t, "40", q.Get("orderViewStatus"))
			assert.Equal(t, "1709272800000", q.Get("beginTime"))
			return kuaishouData(t, kuaishouOrderList{OrderList: []KuaishouOrder{{OID: 1001, Status: 40, TotalFee: 5000}}})
		},
		"/open/seller/order/detail": func(r *http.Request, _ map[string]any) KuaishouResponse {
			if r.URL.Query().Get("oid") == "2" {
				return kuaishouData(t, nil)
			}
			return kuaishouData(t, KuaishouOrder{
				OID:           1001,
				Status:        70,
				TotalFee:      5000,
				ExpressNo:     "ZT100",
				OrderItemList: []KuaishouOrderItem{{ItemID: 42, ItemTitle: "Tea Set", Num: 1, Price: 5000}},
			})
		},
	})
	connector := newTestKuaishouConnector(t, server.URL)

	shipped := integration.OrderStatusShipped
	orders, err := connector.ListOrders(context.Background(), integration.OrderFilter{
		Status:      &shipped,
		UpdatedFrom: fixedClock().Add(-2 * time.Hour),
		Page:        3,
		PageSize:    20,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "1001", orders[0].PlatformOrderID)
	assert.Equal(t, integration.OrderStatusShipped, orders[0].Status)
	assert.True(t, decimal.NewFromInt(50).Equal(orders[0].TotalAmount))

	order, err := connector.GetOrder(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, integration.OrderStatusCompleted, order.Status)
	assert.Equal(t, "ZT100", order.TrackingNumber)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "42", order.Items[0].PlatformProductID)

	_, err = connector.GetOrder(context.Background(), "2")
	requireConnectorError(t, err, integration.ConnectorErrNotFound)
}

func TestKuaishouConnector_VerifySignatureAlwaysFails(t *testing.T) {
	connector := newTestKuaishouConnector(t, "http://127.0.0.1:0")
	body := []byte(`{"event":"kwaishop_order_addNormalOrder"}`)
	assert.False(t, connector.VerifySignature(body, SignWebhookBody("test_webhook_secret", body, false)))
	assert.False(t, connector.VerifySignature(body, ""))
}

func TestKuaishouConnector_DecodeEvent(t *testing.T) {
	connector := newTestKuaishouConnector(t, "http://127.0.0.1:0")

	tests := []struct {
		name  string
		event string
		data  string
		want  integration.WebhookEvent
	}{
		{"order cancelled", "kwaishop_order_orderCancel", `{"oid":1001,"cancelReason":"buyer"}`,
			integration.OrderCancelled{Event: "kwaishop_order_orderCancel", PlatformOrderID: "1001", Reason: "buyer"}},
		{"status change", "kwaishop_order_statusChange", `{"oid":"1001","status":40}`,
			integration.OrderUpdated{Event: "kwaishop_order_statusChange", PlatformOrderID: "1001", PlatformStatus: "40"}},
		{"item change", "kwaishop_item_itemChange", `{"itemId":42}`,
			integration.ProductUpdated{Event: "kwaishop_item_itemChange", PlatformProductID: "42"}},
		{"stock change", "kwaishop_item_stockChange", `{"itemId":42,"stock":"8"}`,
			integration.InventoryUpdated{Event: "kwaishop_item_stockChange", PlatformProductID: "42", Stock: 8}},
		{"unknown", "kwaishop_refund_apply", `{}`,
			integration.UnhandledEvent{Event: "kwaishop_refund_apply"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := connector.DecodeEvent(&integration.WebhookEnvelope{Event: tt.event, Data: []byte(tt.data)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, event)
		})
	}

	_, err := connector.DecodeEvent(&integration.WebhookEnvelope{Event: "kwaishop_item_stockChange", Data: []byte(`{"itemId":42}`)})
	assert.ErrorIs(t, err, integration.ErrMissingEnvelopeField)

	_, err = connector.DecodeEvent(&integration.WebhookEnvelope{Event: "kwaishop_item_stockChange", Data: []byte(`{"itemId":42,"stock":"many"}`)})
	assert.ErrorIs(t, err, integration.ErrMalformedPayload)
}
