package ecommerce

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/integration"
)

// KuaishouProductionAPIURL is the production open API host
const KuaishouProductionAPIURL = "https://openapi.kwaixiaodian.com"

// KuaishouConnector talks to the Kuaishou shop open API for one shop.
// Kuaishou has no finalized webhook signing scheme, so VerifySignature
// always fails; deliveries are only accepted for accounts explicitly
// flagged SignatureUnverified.
type KuaishouConnector struct {
	account *integration.ChannelAccount
	client  *baseClient
	rules   ValidationRules
	now     func() time.Time
}

// NewKuaishouConnector creates a connector bound to account
func NewKuaishouConnector(account *integration.ChannelAccount, opts Options) *KuaishouConnector {
	baseURL := opts.Endpoints.BaseURL
	if baseURL == "" {
		baseURL = KuaishouProductionAPIURL
	}
	c := &KuaishouConnector{
		account: account,
		rules:   opts.Rules,
		now:     opts.now,
	}
	c.client = newBaseClient(integration.PlatformCodeKuaishou, strings.TrimRight(baseURL, "/"), account, opts.HTTPClient, c.authorize)
	return c
}

// Platform returns KUAISHOU
func (c *KuaishouConnector) Platform() integration.PlatformCode {
	return integration.PlatformCodeKuaishou
}

// VerifySignature always returns false
func (c *KuaishouConnector) VerifySignature(_ []byte, _ string) bool {
	return false
}

// DecodeEvent maps a message onto the event taxonomy
func (c *KuaishouConnector) DecodeEvent(env *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	return decodeEvent[kuaishouEventData](kuaishouEvents, env)
}

func (c *KuaishouConnector) authorize(req *apiRequest) error {
	req.Header.Set("Authorization", "Bearer "+c.account.AccessToken)
	req.Header.Set("X-App-Key", c.account.AppKey)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return nil
}

func (c *KuaishouConnector) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.send(ctx, &apiRequest{HTTPMethod: http.MethodGet, Path: path, Query: query}, out)
}

func (c *KuaishouConnector) post(ctx context.Context, path string, params map[string]any, out any) error {
	body, err := marshalParams(integration.PlatformCodeKuaishou, params)
	if err != nil {
		return err
	}
	return c.send(ctx, &apiRequest{HTTPMethod: http.MethodPost, Path: path, Body: body, Mutation: true}, out)
}

func (c *KuaishouConnector) send(ctx context.Context, req *apiRequest, out any) error {
	respBody, err := c.client.do(ctx, req)
	if err != nil {
		return err
	}
	var resp KuaishouResponse
	if err := decodeJSON(integration.PlatformCodeKuaishou, respBody, &resp); err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return resp.connectorError()
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return decodeJSON(integration.PlatformCodeKuaishou, resp.Data, out)
}

func parseKuaishouID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, validationError(integration.PlatformCodeKuaishou, "invalid %s id %q", kind, id)
	}
	return n, nil
}

// GetProduct fetches one item
func (c *KuaishouConnector) GetProduct(ctx context.Context, platformProductID string) (*integration.Product, error) {
	if _, err := parseKuaishouID("product", platformProductID); err != nil {
		return nil, err
	}
	var item *KuaishouItem
	if err := c.get(ctx, "/open/item/get", url.Values{"kwaiItemId": {platformProductID}}, &item); err != nil {
		return nil, err
	}
	if item == nil || item.KwaiItemID == 0 {
		return nil, notFound(integration.PlatformCodeKuaishou, "product", platformProductID)
	}
	p := &integration.Product{
		PlatformID:  strconv.FormatInt(item.KwaiItemID, 10),
		SKU:         item.RelItemID,
		Title:       item.Title,
		Description: item.Details,
		Images:      item.MainImageURLs,
		Price:       fromCents(item.Price),
		Status:      kuaishouStatuses.productStatus(strconv.Itoa(item.ShelfStatus)),
		UpdatedAt:   unixMilli(item.UpdateTime),
	}
	if item.MarketPrice > 0 {
		compareAt := fromCents(item.MarketPrice)
		p.CompareAtPrice = &compareAt
	}
	for _, sku := range item.Skus {
		p.Stock += int(sku.Stock)
	}
	return p, nil
}

// unixMilli reads the millisecond timestamps Kuaishou returns
func unixMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func kuaishouItemParams(product *integration.Product) map[string]any {
	params := map[string]any{
		"title":         product.Title,
		"details":       product.Description,
		"mainImageUrls": product.Images,
		"price":         toCents(product.Price),
		"stock":         product.Stock,
		"relItemId":     product.SKU,
	}
	if product.CompareAtPrice != nil {
		params["marketPrice"] = toCents(*product.CompareAtPrice)
	}
	return params
}

// CreateProduct publishes a new item
func (c *KuaishouConnector) CreateProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	if err := c.rules.ValidateProduct(integration.PlatformCodeKuaishou, product); err != nil {
		return nil, err
	}
	var data kuaishouItemWrite
	if err := c.post(ctx, "/open/item/add", kuaishouItemParams(product), &data); err != nil {
		return nil, err
	}
	if data.KwaiItemID == 0 {
		return nil, integration.NewConnectorError(integration.ConnectorErrBadResponse, "KUAISHOU: item.add returned no item id")
	}
	created := *product
	created.PlatformID = strconv.FormatInt(data.KwaiItemID, 10)
	created.UpdatedAt = c.writeTime(data.UpdateTime)
	return &created, nil
}

// UpdateProduct edits an existing item
func (c *KuaishouConnector) UpdateProduct(ctx context.Context, platformProductID string, product *integration.Product) (*integration.Product, error) {
	id, err := parseKuaishouID("product", platformProductID)
	if err != nil {
		return nil, err
	}
	if err := c.rules.ValidateProduct(integration.PlatformCodeKuaishou, product); err != nil {
		return nil, err
	}
	params := kuaishouItemParams(product)
	params["kwaiItemId"] = id

	var data kuaishouItemWrite
	if err := c.post(ctx, "/open/item/edit", params, &data); err != nil {
		return nil, err
	}
	updated := *product
	updated.PlatformID = platformProductID
	updated.UpdatedAt = c.writeTime(data.UpdateTime)
	return &updated, nil
}

func (c *KuaishouConnector) writeTime(ms int64) time.Time {
	if t := unixMilli(ms); !t.IsZero() {
		return t
	}
	return c.now().UTC()
}

// UpdateStock sets the full stock of an item
func (c *KuaishouConnector) UpdateStock(ctx context.Context, platformProductID string, stock int) error {
	id, err := parseKuaishouID("product", platformProductID)
	if err != nil {
		return err
	}
	if err := c.rules.ValidateStock(integration.PlatformCodeKuaishou, stock); err != nil {
		return err
	}
	return c.post(ctx, "/open/item/sku/stock/update", map[string]any{
		"kwaiItemId": id,
		"stock":      stock,
		"changeType": "FULL",
	}, nil)
}

// UpdatePrice sets the sale price and, when given, the market price
func (c *KuaishouConnector) UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error {
	id, err := parseKuaishouID("product", platformProductID)
	if err != nil {
		return err
	}
	if err := c.rules.ValidatePrice(integration.PlatformCodeKuaishou, price, compareAt); err != nil {
		return err
	}
	params := map[string]any{
		"kwaiItemId": id,
		"price":      toCents(price),
	}
	if compareAt != nil {
		params["marketPrice"] = toCents(*compareAt)
	}
	return c.post(ctx, "/open/item/sku/price/update", params, nil)
}

// ListOrders lists seller orders updated in the filter window. Kuaishou
// pages with a cursor; Page is mapped onto it as an offset.
func (c *KuaishouConnector) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, error) {
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	from := filter.UpdatedFrom
	if from.IsZero() {
		from = c.now().Add(-24 * time.Hour)
	}
	to := filter.UpdatedTo
	if to.IsZero() {
		to = c.now()
	}
	query := url.Values{
		"beginTime":     {strconv.FormatInt(from.UnixMilli(), 10)},
		"endTime":       {strconv.FormatInt(to.UnixMilli(), 10)},
		"pageSize":      {strconv.Itoa(size)},
		"queryType":     {"2"},
		"orderViewType": {"1"},
	}
	if filter.Page > 1 {
		query.Set("pcursor", strconv.Itoa((filter.Page-1)*size))
	}
	if filter.Status != nil {
		if native, ok := kuaishouStatuses.nativeOrderStatus(*filter.Status); ok {
			query.Set("orderViewStatus", native)
		}
	}

	var data kuaishouOrderList
	if err := c.get(ctx, "/open/seller/order/pcursor/list", query, &data); err != nil {
		return nil, err
	}
	orders := make([]integration.Order, 0, len(data.OrderList))
	for i := range data.OrderList {
		orders = append(orders, *c.toOrder(&data.OrderList[i]))
	}
	return orders, nil
}

// GetOrder fetches one order
func (c *KuaishouConnector) GetOrder(ctx context.Context, platformOrderID string) (*integration.Order, error) {
	if _, err := parseKuaishouID("order", platformOrderID); err != nil {
		return nil, err
	}
	var order *KuaishouOrder
	if err := c.get(ctx, "/open/seller/order/detail", url.Values{"oid": {platformOrderID}}, &order); err != nil {
		return nil, err
	}
	if order == nil || order.OID == 0 {
		return nil, notFound(integration.PlatformCodeKuaishou, "order", platformOrderID)
	}
	return c.toOrder(order), nil
}

func (c *KuaishouConnector) toOrder(o *KuaishouOrder) *integration.Order {
	status := strconv.Itoa(o.Status)
	order := &integration.Order{
		ChannelAccountID: c.account.ID,
		PlatformOrderID:  strconv.FormatInt(o.OID, 10),
		Status:           kuaishouStatuses.orderStatus(status),
		PlatformStatus:   status,
		BuyerName:        o.BuyerNick,
		TotalAmount:      fromCents(o.TotalFee),
		Currency:         "CNY",
		TrackingNumber:   o.ExpressNo,
		Carrier:          o.ExpressCode,
		PlacedAt:         unixMilli(o.CreateTime),
		UpdatedAt:        unixMilli(o.UpdateTime),
	}
	for _, line := range o.OrderItemList {
		order.Items = append(order.Items, integration.OrderItem{
			PlatformProductID: strconv.FormatInt(line.ItemID, 10),
			SKU:               line.SkuNick,
			Title:             line.ItemTitle,
			Quantity:          line.Num,
			UnitPrice:         fromCents(line.Price),
		})
	}
	return order
}

// UpdateOrderStatus ships an order. Other targets are policy restricted.
func (c *KuaishouConnector) UpdateOrderStatus(ctx context.Context, platformOrderID string, update integration.OrderStatusUpdate) error {
	id, err := parseKuaishouID("order", platformOrderID)
	if err != nil {
		return err
	}
	if _, ok := kuaishouStatuses.nativeOrderStatus(update.Status); !ok {
		return integration.NewConnectorError(integration.ConnectorErrPolicyRestricted, "KUAISHOU: sellers cannot set order status %s", update.Status)
	}
	if update.TrackingNumber == "" || update.Carrier == "" {
		return validationError(integration.PlatformCodeKuaishou, "tracking number and carrier are required to ship")
	}
	return c.post(ctx, "/open/seller/order/goods/deliver", map[string]any{
		"orderId":     id,
		"expressNo":   update.TrackingNumber,
		"expressCode": carrierCode(integration.PlatformCodeKuaishou, update.Carrier),
	}, nil)
}

// HealthCheck reads the shop info
func (c *KuaishouConnector) HealthCheck(ctx context.Context) error {
	return c.get(ctx, "/open/shop/info", nil, nil)
}

var _ integration.Connector = (*KuaishouConnector)(nil)
