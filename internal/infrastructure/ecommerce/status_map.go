package ecommerce

import (
	"github.com/storefront/backend/internal/domain/integration"
)

// statusTable maps platform-native status values to canonical ones.
// Unknown order statuses fall back to pending, unknown product statuses to
// inactive.
type statusTable struct {
	orders   map[string]integration.OrderStatus
	products map[string]integration.ProductStatus
	// pushable lists the canonical order statuses a seller may set and the
	// platform value sent for each.
	pushable map[integration.OrderStatus]string
}

func (t statusTable) orderStatus(native string) integration.OrderStatus {
	if s, ok := t.orders[native]; ok {
		return s
	}
	return integration.OrderStatusPending
}

func (t statusTable) productStatus(native string) integration.ProductStatus {
	if s, ok := t.products[native]; ok {
		return s
	}
	return integration.ProductStatusInactive
}

func (t statusTable) nativeOrderStatus(status integration.OrderStatus) (string, bool) {
	native, ok := t.pushable[status]
	return native, ok
}

var taobaoStatuses = statusTable{
	orders: map[string]integration.OrderStatus{
		"TRADE_NO_CREATE_PAY":      integration.OrderStatusPending,
		"WAIT_BUYER_PAY":           integration.OrderStatusPending,
		"WAIT_SELLER_SEND_GOODS":   integration.OrderStatusPaid,
		"SELLER_CONSIGNED_PART":    integration.OrderStatusPaid,
		"WAIT_BUYER_CONFIRM_GOODS": integration.OrderStatusShipped,
		"TRADE_BUYER_SIGNED":       integration.OrderStatusDelivered,
		"TRADE_FINISHED":           integration.OrderStatusCompleted,
		"TRADE_CLOSED":             integration.OrderStatusClosed,
		"TRADE_CLOSED_BY_TAOBAO":   integration.OrderStatusCancelled,
	},
	products: map[string]integration.ProductStatus{
		"onsale":  integration.ProductStatusActive,
		"instock": integration.ProductStatusInactive,
	},
	pushable: map[integration.OrderStatus]string{
		integration.OrderStatusShipped: "WAIT_BUYER_CONFIRM_GOODS",
	},
}

var douyinStatuses = statusTable{
	orders: map[string]integration.OrderStatus{
		"1":   integration.OrderStatusPending,
		"105": integration.OrderStatusPaid,
		"2":   integration.OrderStatusPaid,
		"101": integration.OrderStatusShipped,
		"3":   integration.OrderStatusShipped,
		"4":   integration.OrderStatusCancelled,
		"5":   integration.OrderStatusCompleted,
		"6":   integration.OrderStatusRefunding,
		"7":   integration.OrderStatusRefunded,
	},
	products: map[string]integration.ProductStatus{
		"0": integration.ProductStatusActive,
		"1": integration.ProductStatusInactive,
		"2": integration.ProductStatusDeleted,
		"3": integration.ProductStatusDraft,
	},
	pushable: map[integration.OrderStatus]string{
		integration.OrderStatusShipped: "3",
	},
}

var kuaishouStatuses = statusTable{
	orders: map[string]integration.OrderStatus{
		"10": integration.OrderStatusPending,
		"30": integration.OrderStatusPaid,
		"40": integration.OrderStatusShipped,
		"50": integration.OrderStatusDelivered,
		"70": integration.OrderStatusCompleted,
		"80": integration.OrderStatusClosed,
	},
	products: map[string]integration.ProductStatus{
		"1": integration.ProductStatusActive,
		"2": integration.ProductStatusInactive,
		"0": integration.ProductStatusDraft,
	},
	pushable: map[integration.OrderStatus]string{
		integration.OrderStatusShipped: "40",
	},
}

// carrierCodes maps common carrier names to the codes each platform expects
var carrierCodes = map[string]map[integration.PlatformCode]string{
	"SF":    {integration.PlatformCodeTaobao: "SF", integration.PlatformCodeDouyin: "shunfeng", integration.PlatformCodeKuaishou: "SF"},
	"YTO":   {integration.PlatformCodeTaobao: "YTO", integration.PlatformCodeDouyin: "yuantong", integration.PlatformCodeKuaishou: "YTO"},
	"ZTO":   {integration.PlatformCodeTaobao: "ZTO", integration.PlatformCodeDouyin: "zhongtong", integration.PlatformCodeKuaishou: "ZTO"},
	"STO":   {integration.PlatformCodeTaobao: "STO", integration.PlatformCodeDouyin: "shentong", integration.PlatformCodeKuaishou: "STO"},
	"YUNDA": {integration.PlatformCodeTaobao: "YUNDA", integration.PlatformCodeDouyin: "yunda", integration.PlatformCodeKuaishou: "YUNDA"},
	"EMS":   {integration.PlatformCodeTaobao: "EMS", integration.PlatformCodeDouyin: "ems", integration.PlatformCodeKuaishou: "EMS"},
	"JD":    {integration.PlatformCodeTaobao: "JD", integration.PlatformCodeDouyin: "jd", integration.PlatformCodeKuaishou: "JD"},
}

// carrierCode returns the platform's code for carrier, passing unknown
// carriers through unchanged.
func carrierCode(platform integration.PlatformCode, carrier string) string {
	if codes, ok := carrierCodes[carrier]; ok {
		if code, ok := codes[platform]; ok {
			return code
		}
	}
	return carrier
}
