package ecommerce

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/integration"
)

const (
	// TaobaoProductionAPIURL is the production TOP gateway
	TaobaoProductionAPIURL = "https://eco.taobao.com/router/rest"
	// TaobaoSandboxAPIURL is the sandbox TOP gateway
	TaobaoSandboxAPIURL = "https://gw.api.tbsandbox.com/router/rest"

	taobaoItemFields  = "num_iid,title,desc,outer_id,price,num,approve_status,pic_url,item_imgs,modified"
	taobaoTradeFields = "tid,status,buyer_nick,payment,created,modified,sid,company_name,orders"
)

// TaobaoConnector talks to the Taobao/Tmall TOP gateway for one shop
type TaobaoConnector struct {
	account *integration.ChannelAccount
	client  *baseClient
	rules   ValidationRules
	now     func() time.Time
}

// NewTaobaoConnector creates a connector bound to account
func NewTaobaoConnector(account *integration.ChannelAccount, opts Options) *TaobaoConnector {
	baseURL := opts.Endpoints.BaseURL
	if account.Sandbox {
		baseURL = TaobaoSandboxAPIURL
	}
	if baseURL == "" {
		baseURL = TaobaoProductionAPIURL
	}
	c := &TaobaoConnector{
		account: account,
		rules:   opts.Rules,
		now:     opts.now,
	}
	c.client = newBaseClient(integration.PlatformCodeTaobao, baseURL, account, opts.HTTPClient, c.signRequest)
	return c
}

// Platform returns TAOBAO
func (c *TaobaoConnector) Platform() integration.PlatformCode {
	return integration.PlatformCodeTaobao
}

// VerifySignature checks the uppercase hex HMAC-SHA256 of the body
func (c *TaobaoConnector) VerifySignature(rawBody []byte, signature string) bool {
	return verifyHexSignature(c.account.WebhookSecret, rawBody, signature, true)
}

// DecodeEvent maps a TMC message onto the event taxonomy
func (c *TaobaoConnector) DecodeEvent(env *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	return decodeEvent[taobaoEventData](taobaoEvents, env)
}

// signRequest adds the TOP system parameters and the hmac-sha256 sign
func (c *TaobaoConnector) signRequest(req *apiRequest) error {
	params := make(map[string]string, len(req.Form)+7)
	for k := range req.Form {
		params[k] = req.Form.Get(k)
	}
	params["app_key"] = c.account.AppKey
	params["session"] = c.account.AccessToken
	params["timestamp"] = c.now().In(chinaTime).Format(platformTimeLayout)
	params["format"] = "json"
	params["v"] = "2.0"
	params["sign_method"] = "hmac-sha256"
	params["sign"] = SignTaobaoRequest(c.account.AppSecret, params)

	form := make(url.Values, len(params))
	for k, v := range params {
		form.Set(k, v)
	}
	req.Form = form
	return nil
}

// call invokes one TOP method and decodes the reply into out
func (c *TaobaoConnector) call(ctx context.Context, method string, params map[string]string, mutation bool, out any) error {
	form := url.Values{"method": {method}}
	for k, v := range params {
		form.Set(k, v)
	}
	body, err := c.client.do(ctx, &apiRequest{
		HTTPMethod: http.MethodPost,
		Form:       form,
		Mutation:   mutation,
	})
	if err != nil {
		return err
	}

	var envelope struct {
		ErrorResponse *TaobaoErrorResponse `json:"error_response"`
	}
	if err := decodeJSON(integration.PlatformCodeTaobao, body, &envelope); err != nil {
		return err
	}
	if envelope.ErrorResponse != nil {
		return envelope.ErrorResponse.connectorError()
	}
	return decodeJSON(integration.PlatformCodeTaobao, body, out)
}

func validateTaobaoID(kind, id string) error {
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return validationError(integration.PlatformCodeTaobao, "invalid %s id %q", kind, id)
	}
	return nil
}

// GetProduct fetches one item
func (c *TaobaoConnector) GetProduct(ctx context.Context, platformProductID string) (*integration.Product, error) {
	if err := validateTaobaoID("product", platformProductID); err != nil {
		return nil, err
	}
	var resp taobaoItemGetResponse
	err := c.call(ctx, "taobao.item.seller.get", map[string]string{
		"num_iid": platformProductID,
		"fields":  taobaoItemFields,
	}, false, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ItemSellerGetResponse == nil || resp.ItemSellerGetResponse.Item == nil {
		return nil, notFound(integration.PlatformCodeTaobao, "product", platformProductID)
	}
	return c.toProduct(resp.ItemSellerGetResponse.Item), nil
}

func (c *TaobaoConnector) toProduct(item *TaobaoItem) *integration.Product {
	p := &integration.Product{
		PlatformID:  strconv.FormatInt(item.NumIid, 10),
		SKU:         item.OuterID,
		Title:       item.Title,
		Description: item.Desc,
		Price:       parseDecimal(item.Price),
		Stock:       int(item.Num),
		Status:      taobaoStatuses.productStatus(item.ApproveStatus),
		UpdatedAt:   parsePlatformTime(item.Modified),
	}
	if item.ItemImgs != nil {
		for _, img := range item.ItemImgs.ItemImg {
			p.Images = append(p.Images, img.URL)
		}
	}
	if len(p.Images) == 0 && item.PicURL != "" {
		p.Images = []string{item.PicURL}
	}
	return p
}

func taobaoItemParams(product *integration.Product) map[string]string {
	params := map[string]string{
		"title": product.Title,
		"desc":  product.Description,
		"price": product.Price.StringFixed(2),
		"num":   strconv.Itoa(product.Stock),
	}
	if product.SKU != "" {
		params["outer_id"] = product.SKU
	}
	if len(product.Images) > 0 {
		params["pic_path"] = product.Images[0]
	}
	switch product.Status {
	case integration.ProductStatusActive:
		params["approve_status"] = "onsale"
	case integration.ProductStatusInactive, integration.ProductStatusDraft:
		params["approve_status"] = "instock"
	}
	return params
}

// CreateProduct lists a new item
func (c *TaobaoConnector) CreateProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	if err := c.rules.ValidateProduct(integration.PlatformCodeTaobao, product); err != nil {
		return nil, err
	}
	params := taobaoItemParams(product)
	params["type"] = "fixed"
	params["stuff_status"] = "new"

	var resp taobaoItemAddResponse
	if err := c.call(ctx, "taobao.item.add", params, true, &resp); err != nil {
		return nil, err
	}
	if resp.ItemAddResponse == nil || resp.ItemAddResponse.Item == nil {
		return nil, integration.NewConnectorError(integration.ConnectorErrBadResponse, "TAOBAO: item.add returned no item")
	}
	created := *product
	created.PlatformID = strconv.FormatInt(resp.ItemAddResponse.Item.NumIid, 10)
	created.UpdatedAt = parsePlatformTime(resp.ItemAddResponse.Item.Created)
	return &created, nil
}

// UpdateProduct overwrites an existing item
func (c *TaobaoConnector) UpdateProduct(ctx context.Context, platformProductID string, product *integration.Product) (*integration.Product, error) {
	if err := validateTaobaoID("product", platformProductID); err != nil {
		return nil, err
	}
	if err := c.rules.ValidateProduct(integration.PlatformCodeTaobao, product); err != nil {
		return nil, err
	}
	params := taobaoItemParams(product)
	params["num_iid"] = platformProductID

	var resp taobaoItemUpdateResponse
	if err := c.call(ctx, "taobao.item.update", params, true, &resp); err != nil {
		return nil, err
	}
	if resp.ItemUpdateResponse == nil || resp.ItemUpdateResponse.Item == nil {
		return nil, integration.NewConnectorError(integration.ConnectorErrBadResponse, "TAOBAO: item.update returned no item")
	}
	updated := *product
	updated.PlatformID = platformProductID
	updated.UpdatedAt = parsePlatformTime(resp.ItemUpdateResponse.Item.Modified)
	return &updated, nil
}

// UpdateStock sets the full quantity of an item
func (c *TaobaoConnector) UpdateStock(ctx context.Context, platformProductID string, stock int) error {
	if err := validateTaobaoID("product", platformProductID); err != nil {
		return err
	}
	if err := c.rules.ValidateStock(integration.PlatformCodeTaobao, stock); err != nil {
		return err
	}
	var resp taobaoQuantityUpdateResponse
	return c.call(ctx, "taobao.item.quantity.update", map[string]string{
		"num_iid":  platformProductID,
		"quantity": strconv.Itoa(stock),
		"type":     "1",
	}, true, &resp)
}

// UpdatePrice sets the item price. Taobao items have no compare-at price,
// so compareAt is only validated.
func (c *TaobaoConnector) UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error {
	if err := validateTaobaoID("product", platformProductID); err != nil {
		return err
	}
	if err := c.rules.ValidatePrice(integration.PlatformCodeTaobao, price, compareAt); err != nil {
		return err
	}
	var resp taobaoItemUpdateResponse
	return c.call(ctx, "taobao.item.update", map[string]string{
		"num_iid": platformProductID,
		"price":   price.StringFixed(2),
	}, true, &resp)
}

// ListOrders pages through sold trades. A modification window selects the
// increment API.
func (c *TaobaoConnector) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, error) {
	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	params := map[string]string{
		"fields":    taobaoTradeFields,
		"page_no":   strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	}
	if filter.Status != nil {
		if native, ok := taobaoStatuses.nativeOrderStatus(*filter.Status); ok {
			params["status"] = native
		}
	}

	method := "taobao.trades.sold.get"
	if !filter.UpdatedFrom.IsZero() {
		method = "taobao.trades.sold.increment.get"
		to := filter.UpdatedTo
		if to.IsZero() {
			to = c.now()
		}
		params["start_modified"] = filter.UpdatedFrom.In(chinaTime).Format(platformTimeLayout)
		params["end_modified"] = to.In(chinaTime).Format(platformTimeLayout)
	}

	var resp taobaoTradesResponse
	if err := c.call(ctx, method, params, false, &resp); err != nil {
		return nil, err
	}
	list := resp.TradesSoldGetResponse
	if list == nil {
		list = resp.TradesSoldIncrementGetResponse
	}
	if list == nil || list.Trades == nil {
		return []integration.Order{}, nil
	}
	orders := make([]integration.Order, 0, len(list.Trades.Trade))
	for i := range list.Trades.Trade {
		orders = append(orders, *c.toOrder(&list.Trades.Trade[i]))
	}
	return orders, nil
}

// GetOrder fetches one trade
func (c *TaobaoConnector) GetOrder(ctx context.Context, platformOrderID string) (*integration.Order, error) {
	if err := validateTaobaoID("order", platformOrderID); err != nil {
		return nil, err
	}
	var resp taobaoTradeGetResponse
	err := c.call(ctx, "taobao.trade.fullinfo.get", map[string]string{
		"tid":    platformOrderID,
		"fields": taobaoTradeFields,
	}, false, &resp)
	if err != nil {
		return nil, err
	}
	if resp.TradeFullinfoGetResponse == nil || resp.TradeFullinfoGetResponse.Trade == nil {
		return nil, notFound(integration.PlatformCodeTaobao, "order", platformOrderID)
	}
	return c.toOrder(resp.TradeFullinfoGetResponse.Trade), nil
}

func (c *TaobaoConnector) toOrder(trade *TaobaoTrade) *integration.Order {
	order := &integration.Order{
		ChannelAccountID: c.account.ID,
		PlatformOrderID:  strconv.FormatInt(trade.Tid, 10),
		Status:           taobaoStatuses.orderStatus(trade.Status),
		PlatformStatus:   trade.Status,
		BuyerName:        trade.BuyerNick,
		TotalAmount:      parseDecimal(trade.Payment),
		Currency:         "CNY",
		TrackingNumber:   trade.Sid,
		Carrier:          trade.CompanyName,
		PlacedAt:         parsePlatformTime(trade.Created),
		UpdatedAt:        parsePlatformTime(trade.Modified),
	}
	if trade.Orders != nil {
		for _, line := range trade.Orders.Order {
			order.Items = append(order.Items, integration.OrderItem{
				PlatformProductID: strconv.FormatInt(line.NumIid, 10),
				SKU:               line.OuterIid,
				Title:             line.Title,
				Quantity:          int(line.Num),
				UnitPrice:         parseDecimal(line.Price),
			})
		}
	}
	return order
}

// UpdateOrderStatus pushes a status change. Sellers can only ship on
// Taobao; any other target status is policy restricted.
func (c *TaobaoConnector) UpdateOrderStatus(ctx context.Context, platformOrderID string, update integration.OrderStatusUpdate) error {
	if err := validateTaobaoID("order", platformOrderID); err != nil {
		return err
	}
	if _, ok := taobaoStatuses.nativeOrderStatus(update.Status); !ok {
		return integration.NewConnectorError(integration.ConnectorErrPolicyRestricted, "TAOBAO: sellers cannot set order status %s", update.Status)
	}
	if update.TrackingNumber == "" || update.Carrier == "" {
		return validationError(integration.PlatformCodeTaobao, "tracking number and carrier are required to ship")
	}

	var resp taobaoLogisticsSendResponse
	err := c.call(ctx, "taobao.logistics.offline.send", map[string]string{
		"tid":          platformOrderID,
		"out_sid":      update.TrackingNumber,
		"company_code": carrierCode(integration.PlatformCodeTaobao, update.Carrier),
	}, true, &resp)
	if err != nil {
		return err
	}
	if resp.LogisticsOfflineSendResponse == nil || resp.LogisticsOfflineSendResponse.Shipping == nil ||
		!resp.LogisticsOfflineSendResponse.Shipping.IsSuccess {
		return integration.NewConnectorError(integration.ConnectorErrBadResponse, "TAOBAO: shipment for %s not acknowledged", platformOrderID)
	}
	return nil
}

// HealthCheck calls taobao.time.get with the account's credentials
func (c *TaobaoConnector) HealthCheck(ctx context.Context) error {
	var resp taobaoTimeResponse
	if err := c.call(ctx, "taobao.time.get", nil, false, &resp); err != nil {
		return err
	}
	if resp.TimeGetResponse == nil {
		return integration.NewConnectorError(integration.ConnectorErrBadResponse, "TAOBAO: empty time.get response")
	}
	return nil
}

var _ integration.Connector = (*TaobaoConnector)(nil)
