package ecommerce

import (
	"strings"

	"github.com/storefront/backend/internal/domain/integration"
)

// TaobaoErrorResponse is the error_response block of a TOP gateway reply
type TaobaoErrorResponse struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	SubCode   string `json:"sub_code,omitempty"`
	SubMsg    string `json:"sub_msg,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// connectorError classifies a gateway error. Top-level codes cover
// throttling and auth; sub codes carry the business reason.
func (e *TaobaoErrorResponse) connectorError() *integration.ConnectorError {
	code := integration.ConnectorErrBadResponse
	switch {
	case e.Code == 7 || strings.HasPrefix(e.SubCode, "accesscontrol.limited"):
		code = integration.ConnectorErrRateLimited
	case e.Code == 25 || e.Code == 26 || e.Code == 27 || e.Code == 53:
		code = integration.ConnectorErrUnauthorized
	case strings.Contains(e.SubCode, "not-exist"), strings.Contains(e.SubCode, "not-found"):
		code = integration.ConnectorErrNotFound
	case strings.Contains(e.SubCode, "status"):
		code = integration.ConnectorErrPolicyRestricted
	case strings.Contains(e.SubCode, "timeout"):
		code = integration.ConnectorErrTimeout
	case strings.HasPrefix(e.SubCode, "isp."):
		code = integration.ConnectorErrPlatformUnavailable
	case strings.HasPrefix(e.SubCode, "isv."):
		code = integration.ConnectorErrValidation
	case e.Code == 15:
		code = integration.ConnectorErrServerError
	}
	msg := e.Msg
	if e.SubMsg != "" {
		msg = e.SubMsg
	}
	return integration.NewConnectorError(code, "TAOBAO: %d %s: %s", e.Code, e.SubCode, msg)
}

// TaobaoItem is a product as returned by taobao.item.seller.get
type TaobaoItem struct {
	NumIid        int64           `json:"num_iid"`
	Title         string          `json:"title"`
	Desc          string          `json:"desc,omitempty"`
	OuterID       string          `json:"outer_id,omitempty"`
	Price         string          `json:"price"`
	Num           int64           `json:"num"`
	ApproveStatus string          `json:"approve_status"`
	PicURL        string          `json:"pic_url,omitempty"`
	ItemImgs      *TaobaoItemImgs `json:"item_imgs,omitempty"`
	Modified      string          `json:"modified,omitempty"`
}

// TaobaoItemImgs wraps the item image list
type TaobaoItemImgs struct {
	ItemImg []TaobaoItemImg `json:"item_img"`
}

// TaobaoItemImg is one item image
type TaobaoItemImg struct {
	URL string `json:"url"`
}

// TaobaoItemRef is the short item returned by add and update calls
type TaobaoItemRef struct {
	NumIid   int64  `json:"num_iid"`
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

type taobaoItemGetResponse struct {
	ItemSellerGetResponse *struct {
		Item *TaobaoItem `json:"item"`
	} `json:"item_seller_get_response"`
}

type taobaoItemAddResponse struct {
	ItemAddResponse *struct {
		Item *TaobaoItemRef `json:"item"`
	} `json:"item_add_response"`
}

type taobaoItemUpdateResponse struct {
	ItemUpdateResponse *struct {
		Item *TaobaoItemRef `json:"item"`
	} `json:"item_update_response"`
}

type taobaoQuantityUpdateResponse struct {
	ItemQuantityUpdateResponse *struct {
		Item *TaobaoItemRef `json:"item"`
	} `json:"item_quantity_update_response"`
}

// TaobaoTrade is an order from the TOP trade APIs
type TaobaoTrade struct {
	Tid         int64         `json:"tid"`
	Status      string        `json:"status"`
	BuyerNick   string        `json:"buyer_nick"`
	Payment     string        `json:"payment"`
	Created     string        `json:"created,omitempty"`
	Modified    string        `json:"modified,omitempty"`
	Sid         string        `json:"sid,omitempty"`
	CompanyName string        `json:"company_name,omitempty"`
	Orders      *TaobaoOrders `json:"orders,omitempty"`
}

// TaobaoOrders wraps the sub-order list of a trade
type TaobaoOrders struct {
	Order []TaobaoOrder `json:"order"`
}

// TaobaoOrder is one line of a trade
type TaobaoOrder struct {
	Oid      int64  `json:"oid"`
	NumIid   int64  `json:"num_iid"`
	OuterIid string `json:"outer_iid,omitempty"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Num      int64  `json:"num"`
}

type taobaoTradeGetResponse struct {
	TradeFullinfoGetResponse *struct {
		Trade *TaobaoTrade `json:"trade"`
	} `json:"trade_fullinfo_get_response"`
}

// taobaoTradeList is shared by trades.sold.get and the increment variant
type taobaoTradeList struct {
	TotalResults int64 `json:"total_results"`
	HasNext      bool  `json:"has_next"`
	Trades       *struct {
		Trade []TaobaoTrade `json:"trade"`
	} `json:"trades"`
}

type taobaoTradesResponse struct {
	TradesSoldGetResponse          *taobaoTradeList `json:"trades_sold_get_response"`
	TradesSoldIncrementGetResponse *taobaoTradeList `json:"trades_sold_increment_get_response"`
}

type taobaoLogisticsSendResponse struct {
	LogisticsOfflineSendResponse *struct {
		Shipping *struct {
			IsSuccess bool `json:"is_success"`
		} `json:"shipping"`
	} `json:"logistics_offline_send_response"`
}

type taobaoTimeResponse struct {
	TimeGetResponse *struct {
		Time string `json:"time"`
	} `json:"time_get_response"`
}

// taobaoEventData is the data block of a TMC message
type taobaoEventData struct {
	Tid     integration.FlexString   `json:"tid"`
	NumIid  integration.FlexString   `json:"num_iid"`
	NumIids []integration.FlexString `json:"num_iids"`
	Status  string                   `json:"status"`
	Reason  string                   `json:"close_reason"`
	Num     integration.FlexString   `json:"num"`
}

func (d taobaoEventData) payload() (integration.EventPayload, error) {
	stock, err := integration.ParseStock(d.Num)
	if err != nil {
		return integration.EventPayload{}, err
	}
	ids := flexStrings(d.NumIids)
	if d.NumIid != "" && len(ids) == 0 {
		ids = []string{d.NumIid.String()}
	}
	return integration.EventPayload{
		OrderID:    d.Tid.String(),
		ProductID:  d.NumIid.String(),
		ProductIDs: ids,
		Status:     d.Status,
		Reason:     d.Reason,
		Stock:      stock,
	}, nil
}

// taobaoEvents is the TMC topic catalog
var taobaoEvents = eventCatalog{
	"taobao_trade_TradeCreate":                    integration.EventKindOrderCreated,
	"taobao_trade_TradeBuyerPay":                  integration.EventKindOrderUpdated,
	"taobao_trade_TradeSellerShip":                integration.EventKindOrderUpdated,
	"taobao_trade_TradeSuccess":                   integration.EventKindOrderUpdated,
	"taobao_trade_TradeChanged":                   integration.EventKindOrderUpdated,
	"taobao_trade_TradeClose":                     integration.EventKindOrderCancelled,
	"taobao_trade_TradeCloseAndModifyDetailOrder": integration.EventKindOrderCancelled,
	"taobao_item_ItemAdd":                         integration.EventKindProductUpdated,
	"taobao_item_ItemUpdate":                      integration.EventKindProductUpdated,
	"taobao_item_ItemUpshelf":                     integration.EventKindProductUpdated,
	"taobao_item_ItemDownshelf":                   integration.EventKindProductUpdated,
	"taobao_item_ItemStockChanged":                integration.EventKindInventoryUpdated,
}
