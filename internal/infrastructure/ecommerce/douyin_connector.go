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

const (
	// DouyinProductionAPIURL is the production open API host
	DouyinProductionAPIURL = "https://openapi-fxg.jinritemai.com"
	// DouyinSandboxAPIURL is the sandbox open API host
	DouyinSandboxAPIURL = "https://openapi-sandbox.jinritemai.com"

	douyinAPIVersion = "2"
)

// DouyinConnector talks to the Douyin shop open API for one shop
type DouyinConnector struct {
	account *integration.ChannelAccount
	client  *baseClient
	rules   ValidationRules
	now     func() time.Time
}

// NewDouyinConnector creates a connector bound to account
func NewDouyinConnector(account *integration.ChannelAccount, opts Options) *DouyinConnector {
	baseURL := opts.Endpoints.BaseURL
	if account.Sandbox {
		baseURL = DouyinSandboxAPIURL
	}
	if baseURL == "" {
		baseURL = DouyinProductionAPIURL
	}
	c := &DouyinConnector{
		account: account,
		rules:   opts.Rules,
		now:     opts.now,
	}
	c.client = newBaseClient(integration.PlatformCodeDouyin, strings.TrimRight(baseURL, "/"), account, opts.HTTPClient, c.signRequest)
	return c
}

// Platform returns DOUYIN
func (c *DouyinConnector) Platform() integration.PlatformCode {
	return integration.PlatformCodeDouyin
}

// VerifySignature checks the lowercase hex HMAC-SHA256 of the body
func (c *DouyinConnector) VerifySignature(rawBody []byte, signature string) bool {
	return verifyHexSignature(c.account.WebhookSecret, rawBody, signature, false)
}

// DecodeEvent maps a push message onto the event taxonomy
func (c *DouyinConnector) DecodeEvent(env *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	return decodeEvent[douyinEventData](douyinEvents, env)
}

// douyinMethod turns an API path like /product/detail into product.detail
func douyinMethod(path string) string {
	return strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", ".")
}

// signRequest puts the system parameters and sign on the query string. The
// body is the param_json.
func (c *DouyinConnector) signRequest(req *apiRequest) error {
	method := douyinMethod(req.Path)
	timestamp := formatUnix(c.now())
	paramJSON := string(req.Body)

	q := url.Values{}
	q.Set("app_key", c.account.AppKey)
	q.Set("method", method)
	q.Set("access_token", c.account.AccessToken)
	q.Set("timestamp", timestamp)
	q.Set("v", douyinAPIVersion)
	q.Set("sign_method", "hmac-sha256")
	q.Set("sign", SignDouyinRequest(c.account.AppKey, c.account.AppSecret, method, paramJSON, timestamp, douyinAPIVersion))
	req.Query = q
	req.Header.Set("Content-Type", "application/json")
	return nil
}

// call posts params to path and decodes the data block into out
func (c *DouyinConnector) call(ctx context.Context, path string, params map[string]any, mutation bool, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	body, err := marshalParams(integration.PlatformCodeDouyin, params)
	if err != nil {
		return err
	}
	respBody, err := c.client.do(ctx, &apiRequest{
		HTTPMethod: http.MethodPost,
		Path:       path,
		Body:       body,
		Mutation:   mutation,
	})
	if err != nil {
		return err
	}

	var resp DouyinResponse
	if err := decodeJSON(integration.PlatformCodeDouyin, respBody, &resp); err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return resp.connectorError()
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return decodeJSON(integration.PlatformCodeDouyin, resp.Data, out)
}

func parseDouyinID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, validationError(integration.PlatformCodeDouyin, "invalid %s id %q", kind, id)
	}
	return n, nil
}

// GetProduct fetches one product. Stock is the sum over its SKUs.
func (c *DouyinConnector) GetProduct(ctx context.Context, platformProductID string) (*integration.Product, error) {
	id, err := parseDouyinID("product", platformProductID)
	if err != nil {
		return nil, err
	}
	var data douyinProductDetail
	if err := c.call(ctx, "/product/detail", map[string]any{"product_id": id}, false, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, notFound(integration.PlatformCodeDouyin, "product", platformProductID)
	}
	return toDouyinProduct(data.Product), nil
}

func toDouyinProduct(item *DouyinProduct) *integration.Product {
	p := &integration.Product{
		PlatformID:  strconv.FormatInt(item.ProductID, 10),
		SKU:         item.OutProductID,
		Title:       item.Name,
		Description: item.Description,
		Price:       fromCents(item.DiscountPrice),
		Status:      douyinStatuses.productStatus(strconv.Itoa(item.Status)),
		UpdatedAt:   unixTime(item.UpdateTime),
	}
	if item.MarketPrice > 0 {
		compareAt := fromCents(item.MarketPrice)
		p.CompareAtPrice = &compareAt
	}
	if item.Img != "" {
		p.Images = append(p.Images, item.Img)
	}
	for _, pic := range item.Pic {
		if pic != item.Img {
			p.Images = append(p.Images, pic)
		}
	}
	for _, sku := range item.SkuList {
		p.Stock += int(sku.StockNum)
	}
	return p
}

func douyinProductParams(product *integration.Product) map[string]any {
	params := map[string]any{
		"name":           product.Title,
		"description":    product.Description,
		"pic":            strings.Join(product.Images, "|"),
		"discount_price": toCents(product.Price),
		"stock_num":      product.Stock,
		"out_product_id": product.SKU,
	}
	if product.CompareAtPrice != nil {
		params["market_price"] = toCents(*product.CompareAtPrice)
	}
	if product.Status == integration.ProductStatusDraft {
		params["commit"] = false
	} else {
		params["commit"] = true
	}
	return params
}

// CreateProduct publishes a new product
func (c *DouyinConnector) CreateProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	if err := c.rules.ValidateProduct(integration.PlatformCodeDouyin, product); err != nil {
		return nil, err
	}
	var data douyinProductWrite
	if err := c.call(ctx, "/product/addV2", douyinProductParams(product), true, &data); err != nil {
		return nil, err
	}
	if data.ProductID == 0 {
		return nil, integration.NewConnectorError(integration.ConnectorErrBadResponse, "DOUYIN: product.addV2 returned no product id")
	}
	created := *product
	created.PlatformID = strconv.FormatInt(data.ProductID, 10)
	created.UpdatedAt = c.writeTime(data.UpdateTime)
	return &created, nil
}

// UpdateProduct edits an existing product
func (c *DouyinConnector) UpdateProduct(ctx context.Context, platformProductID string, product *integration.Product) (*integration.Product, error) {
	id, err := parseDouyinID("product", platformProductID)
	if err != nil {
		return nil, err
	}
	if err := c.rules.ValidateProduct(integration.PlatformCodeDouyin, product); err != nil {
		return nil, err
	}
	params := douyinProductParams(product)
	params["product_id"] = id

	var data douyinProductWrite
	if err := c.call(ctx, "/product/editV2", params, true, &data); err != nil {
		return nil, err
	}
	updated := *product
	updated.PlatformID = platformProductID
	updated.UpdatedAt = c.writeTime(data.UpdateTime)
	return &updated, nil
}

func (c *DouyinConnector) writeTime(sec int64) time.Time {
	if t := unixTime(sec); !t.IsZero() {
		return t
	}
	return c.now().UTC()
}

// UpdateStock sets the full stock of a single-SKU product
func (c *DouyinConnector) UpdateStock(ctx context.Context, platformProductID string, stock int) error {
	id, err := parseDouyinID("product", platformProductID)
	if err != nil {
		return err
	}
	if err := c.rules.ValidateStock(integration.PlatformCodeDouyin, stock); err != nil {
		return err
	}
	return c.call(ctx, "/sku/syncStock", map[string]any{
		"product_id":  id,
		"stock_num":   stock,
		"incremental": false,
	}, true, nil)
}

// UpdatePrice sets the selling price and, when given, the market price
func (c *DouyinConnector) UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error {
	id, err := parseDouyinID("product", platformProductID)
	if err != nil {
		return err
	}
	if err := c.rules.ValidatePrice(integration.PlatformCodeDouyin, price, compareAt); err != nil {
		return err
	}
	params := map[string]any{
		"product_id": id,
		"price":      toCents(price),
	}
	if compareAt != nil {
		params["market_price"] = toCents(*compareAt)
	}
	return c.call(ctx, "/sku/editPrice", params, true, nil)
}

// ListOrders searches shop orders. Douyin pages are zero based.
func (c *DouyinConnector) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, error) {
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 50
	}
	params := map[string]any{
		"page": page - 1,
		"size": size,
	}
	if !filter.UpdatedFrom.IsZero() {
		params["update_time_start"] = filter.UpdatedFrom.Unix()
		to := filter.UpdatedTo
		if to.IsZero() {
			to = c.now()
		}
		params["update_time_end"] = to.Unix()
	}
	if filter.Status != nil {
		if native, ok := douyinStatuses.nativeOrderStatus(*filter.Status); ok {
			params["order_status"] = native
		}
	}

	var data douyinOrderList
	if err := c.call(ctx, "/order/searchList", params, false, &data); err != nil {
		return nil, err
	}
	orders := make([]integration.Order, 0, len(data.ShopOrder))
	for i := range data.ShopOrder {
		orders = append(orders, *c.toOrder(&data.ShopOrder[i]))
	}
	return orders, nil
}

// GetOrder fetches one shop order
func (c *DouyinConnector) GetOrder(ctx context.Context, platformOrderID string) (*integration.Order, error) {
	if platformOrderID == "" {
		return nil, validationError(integration.PlatformCodeDouyin, "order id is required")
	}
	var data douyinOrderDetail
	if err := c.call(ctx, "/order/orderDetail", map[string]any{"shop_order_id": platformOrderID}, false, &data); err != nil {
		return nil, err
	}
	if data.ShopOrderDetail == nil {
		return nil, notFound(integration.PlatformCodeDouyin, "order", platformOrderID)
	}
	return c.toOrder(data.ShopOrderDetail), nil
}

func (c *DouyinConnector) toOrder(o *DouyinOrder) *integration.Order {
	status := strconv.Itoa(o.OrderStatus)
	order := &integration.Order{
		ChannelAccountID: c.account.ID,
		PlatformOrderID:  o.OrderID,
		Status:           douyinStatuses.orderStatus(status),
		PlatformStatus:   status,
		BuyerName:        o.BuyerOpenUID,
		TotalAmount:      fromCents(o.PayAmount),
		Currency:         "CNY",
		PlacedAt:         unixTime(o.CreateTime),
		UpdatedAt:        unixTime(o.UpdateTime),
	}
	if len(o.LogisticsInfo) > 0 {
		order.TrackingNumber = o.LogisticsInfo[0].TrackingNo
		order.Carrier = o.LogisticsInfo[0].Company
	}
	for _, line := range o.SkuOrderList {
		var unit decimal.Decimal
		if line.ItemNum > 0 {
			unit = fromCents(line.OriginPrice).Div(decimal.NewFromInt(int64(line.ItemNum)))
		}
		order.Items = append(order.Items, integration.OrderItem{
			PlatformProductID: strconv.FormatInt(line.ProductID, 10),
			SKU:               line.OutSkuID,
			Title:             line.ProductName,
			Quantity:          line.ItemNum,
			UnitPrice:         unit,
		})
	}
	return order
}

// UpdateOrderStatus pushes a shipment. Orders otherwise move through the
// platform's own workflow, so other targets are policy restricted.
func (c *DouyinConnector) UpdateOrderStatus(ctx context.Context, platformOrderID string, update integration.OrderStatusUpdate) error {
	if _, ok := douyinStatuses.nativeOrderStatus(update.Status); !ok {
		return integration.NewConnectorError(integration.ConnectorErrPolicyRestricted, "DOUYIN: sellers cannot set order status %s", update.Status)
	}
	if update.TrackingNumber == "" || update.Carrier == "" {
		return validationError(integration.PlatformCodeDouyin, "tracking number and carrier are required to ship")
	}
	return c.call(ctx, "/order/logisticsAdd", map[string]any{
		"order_id":       platformOrderID,
		"company_code":   carrierCode(integration.PlatformCodeDouyin, update.Carrier),
		"logistics_code": update.TrackingNumber,
	}, true, nil)
}

// HealthCheck reads the shop's category tree root
func (c *DouyinConnector) HealthCheck(ctx context.Context) error {
	return c.call(ctx, "/shop/getShopCategory", map[string]any{"cid": 0}, false, nil)
}

var _ integration.Connector = (*DouyinConnector)(nil)
