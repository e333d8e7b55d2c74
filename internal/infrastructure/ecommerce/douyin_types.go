package ecommerce

import (
	"encoding/json"

	"github.com/storefront/backend/internal/domain/integration"
)

// DouyinResponse is the envelope of every Douyin open API reply
type DouyinResponse struct {
	// ErrNo is 0 on success
	ErrNo   int             `json:"err_no"`
	Message string          `json:"message"`
	LogID   string          `json:"log_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *DouyinResponse) IsSuccess() bool {
	return r.ErrNo == 0
}

// Douyin error numbers with a specific meaning. Other 4xxxx numbers are
// parameter errors; anything else is a platform fault.
var douyinErrorCodes = map[int]integration.ConnectorErrorCode{
	30001: integration.ConnectorErrUnauthorized,
	30002: integration.ConnectorErrUnauthorized,
	30007: integration.ConnectorErrRateLimited,
	50002: integration.ConnectorErrNotFound,
	50003: integration.ConnectorErrNotFound,
	60001: integration.ConnectorErrPolicyRestricted,
	70001: integration.ConnectorErrPlatformUnavailable,
}

func (r *DouyinResponse) connectorError() *integration.ConnectorError {
	code, ok := douyinErrorCodes[r.ErrNo]
	if !ok {
		if r.ErrNo >= 40000 && r.ErrNo < 50000 {
			code = integration.ConnectorErrValidation
		} else {
			code = integration.ConnectorErrServerError
		}
	}
	return integration.NewConnectorError(code, "DOUYIN: %d %s", r.ErrNo, r.Message)
}

// DouyinProduct is a product from product.detail
type DouyinProduct struct {
	ProductID     int64       `json:"product_id"`
	OutProductID  string      `json:"out_product_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Img           string      `json:"img"`
	Pic           []string    `json:"pic,omitempty"`
	MarketPrice   int64       `json:"market_price"`
	DiscountPrice int64       `json:"discount_price"`
	Status        int         `json:"status"`
	UpdateTime    int64       `json:"update_time"`
	SkuList       []DouyinSku `json:"sku_list,omitempty"`
}

// DouyinSku is one SKU of a product
type DouyinSku struct {
	SkuID    int64  `json:"sku_id"`
	OutSkuID string `json:"out_sku_id"`
	StockNum int64  `json:"stock_num"`
	Price    int64  `json:"price"`
}

type douyinProductDetail struct {
	Product *DouyinProduct `json:"product"`
}

type douyinProductWrite struct {
	ProductID  int64 `json:"product_id"`
	UpdateTime int64 `json:"update_time,omitempty"`
}

// DouyinOrder is a shop order from the order APIs
type DouyinOrder struct {
	OrderID       string               `json:"order_id"`
	OrderStatus   int                  `json:"order_status"`
	PayAmount     int64                `json:"pay_amount"`
	BuyerOpenUID  string               `json:"open_id,omitempty"`
	CreateTime    int64                `json:"create_time"`
	UpdateTime    int64                `json:"update_time"`
	LogisticsInfo []DouyinLogisticInfo `json:"logistics_info,omitempty"`
	SkuOrderList  []DouyinSkuOrder     `json:"sku_order_list,omitempty"`
}

// DouyinLogisticInfo is one shipment of an order
type DouyinLogisticInfo struct {
	TrackingNo string `json:"tracking_no"`
	Company    string `json:"company"`
}

// DouyinSkuOrder is one line of an order
type DouyinSkuOrder struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	OutSkuID    string `json:"out_sku_id"`
	ItemNum     int    `json:"item_num"`
	OriginPrice int64  `json:"origin_amount"`
}

type douyinOrderDetail struct {
	ShopOrderDetail *DouyinOrder `json:"shop_order_detail"`
}

type douyinOrderList struct {
	Total     int64         `json:"total"`
	ShopOrder []DouyinOrder `json:"shop_order_list"`
}

// douyinEventData is the data block of a Douyin push message
type douyinEventData struct {
	OrderID     integration.FlexString   `json:"p_id"`
	ProductID   integration.FlexString   `json:"product_id"`
	ProductIDs  []integration.FlexString `json:"product_ids"`
	OrderStatus integration.FlexString   `json:"order_status"`
	Reason      string                   `json:"cancel_reason"`
	StockNum    integration.FlexString   `json:"stock_num"`
}

func (d douyinEventData) payload() (integration.EventPayload, error) {
	stock, err := integration.ParseStock(d.StockNum)
	if err != nil {
		return integration.EventPayload{}, err
	}
	return integration.EventPayload{
		OrderID:    d.OrderID.String(),
		ProductID:  d.ProductID.String(),
		ProductIDs: flexStrings(d.ProductIDs),
		Status:     d.OrderStatus.String(),
		Reason:     d.Reason,
		Stock:      stock,
	}, nil
}

// douyinEvents is the push message catalog
var douyinEvents = eventCatalog{
	"doudian_trade_TradeCreate":         integration.EventKindOrderCreated,
	"doudian_trade_TradePaid":           integration.EventKindOrderUpdated,
	"doudian_trade_TradeSellerShip":     integration.EventKindOrderUpdated,
	"doudian_trade_TradeSuccess":        integration.EventKindOrderUpdated,
	"doudian_trade_TradeAddressChanged": integration.EventKindOrderUpdated,
	"doudian_trade_TradeCanceled":       integration.EventKindOrderCancelled,
	"doudian_product_InfoChange":        integration.EventKindProductUpdated,
	"doudian_product_Change":            integration.EventKindProductUpdated,
	"doudian_product_StockChange":       integration.EventKindInventoryUpdated,
}
