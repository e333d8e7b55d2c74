package ecommerce

import (
	"encoding/json"

	"github.com/storefront/backend/internal/domain/integration"
)

// KuaishouResponse is the envelope of every Kuaishou open API reply
type KuaishouResponse struct {
	// Result is 1 on success
	Result   int             `json:"result"`
	ErrorMsg string          `json:"error_msg,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// IsSuccess returns true if the response indicates success
func (r *KuaishouResponse) IsSuccess() bool {
	return r.Result == 1
}

var kuaishouErrorCodes = map[int]integration.ConnectorErrorCode{
	24:  integration.ConnectorErrRateLimited,
	28:  integration.ConnectorErrUnauthorized,
	29:  integration.ConnectorErrUnauthorized,
	404: integration.ConnectorErrNotFound,
	803: integration.ConnectorErrPolicyRestricted,
	500: integration.ConnectorErrServerError,
}

func (r *KuaishouResponse) connectorError() *integration.ConnectorError {
	code, ok := kuaishouErrorCodes[r.Result]
	if !ok {
		code = integration.ConnectorErrValidation
	}
	return integration.NewConnectorError(code, "KUAISHOU: %d %s", r.Result, r.ErrorMsg)
}

// KuaishouItem is a product from open.item.get
type KuaishouItem struct {
	KwaiItemID    int64         `json:"kwaiItemId"`
	RelItemID     string        `json:"relItemId,omitempty"`
	Title         string        `json:"title"`
	Details       string        `json:"details,omitempty"`
	MainImageURLs []string      `json:"mainImageUrls,omitempty"`
	Price         int64         `json:"price"`
	MarketPrice   int64         `json:"marketPrice,omitempty"`
	ShelfStatus   int           `json:"shelfStatus"`
	UpdateTime    int64         `json:"updateTime"`
	Skus          []KuaishouSku `json:"skuList,omitempty"`
}

// KuaishouSku is one SKU of an item
type KuaishouSku struct {
	KwaiSkuID int64 `json:"kwaiSkuId"`
	Stock     int64 `json:"skuStock"`
	Price     int64 `json:"skuSalePrice"`
}

type kuaishouItemWrite struct {
	KwaiItemID int64 `json:"kwaiItemId"`
	UpdateTime int64 `json:"updateTime,omitempty"`
}

// KuaishouOrder is an order from the seller order APIs
type KuaishouOrder struct {
	OID           int64               `json:"oid"`
	Status        int                 `json:"status"`
	BuyerNick     string              `json:"buyerNick,omitempty"`
	TotalFee      int64               `json:"totalFee"`
	CreateTime    int64               `json:"createTime"`
	UpdateTime    int64               `json:"updateTime"`
	ExpressNo     string              `json:"expressNo,omitempty"`
	ExpressCode   string              `json:"expressCode,omitempty"`
	OrderItemList []KuaishouOrderItem `json:"orderItemList,omitempty"`
}

// KuaishouOrderItem is one line of an order
type KuaishouOrderItem struct {
	ItemID    int64  `json:"itemId"`
	ItemTitle string `json:"itemTitle"`
	SkuNick   string `json:"skuNick,omitempty"`
	Num       int    `json:"num"`
	Price     int64  `json:"price"`
}

type kuaishouOrderList struct {
	Cursor    string          `json:"pcursor"`
	OrderList []KuaishouOrder `json:"orderList"`
}

// kuaishouEventData is the data block of a Kuaishou message
type kuaishouEventData struct {
	OID     integration.FlexString   `json:"oid"`
	ItemID  integration.FlexString   `json:"itemId"`
	ItemIDs []integration.FlexString `json:"itemIds"`
	Status  integration.FlexString   `json:"status"`
	Reason  string                   `json:"cancelReason"`
	Stock   integration.FlexString   `json:"stock"`
}

func (d kuaishouEventData) payload() (integration.EventPayload, error) {
	stock, err := integration.ParseStock(d.Stock)
	if err != nil {
		return integration.EventPayload{}, err
	}
	return integration.EventPayload{
		OrderID:    d.OID.String(),
		ProductID:  d.ItemID.String(),
		ProductIDs: flexStrings(d.ItemIDs),
		Status:     d.Status.String(),
		Reason:     d.Reason,
		Stock:      stock,
	}, nil
}

// kuaishouEvents is the message catalog
var kuaishouEvents = eventCatalog{
	"kwaishop_order_addNormalOrder":   integration.EventKindOrderCreated,
	"kwaishop_order_statusChange":     integration.EventKindOrderUpdated,
	"kwaishop_order_deliverySuccess":  integration.EventKindOrderUpdated,
	"kwaishop_order_orderCancel":      integration.EventKindOrderCancelled,
	"kwaishop_item_itemChange":        integration.EventKindProductUpdated,
	"kwaishop_item_shelfStatusChange": integration.EventKindProductUpdated,
	"kwaishop_item_stockChange":       integration.EventKindInventoryUpdated,
}
