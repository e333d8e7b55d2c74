package integration

import (
	"errors"
	"strings"
)

var (
	ErrPlatformNotSupported = errors.New("integration: platform not supported")
	ErrAccountInactive      = errors.New("integration: channel account inactive")
	ErrInvalidSignature     = errors.New("integration: invalid webhook signature")
	ErrMalformedPayload     = errors.New("integration: malformed webhook payload")
	ErrMissingEnvelopeField = errors.New("integration: missing required webhook field")
)

// PlatformCode identifies an external marketplace platform
type PlatformCode string

const (
	// PlatformCodeTaobao represents Taobao/Tmall
	PlatformCodeTaobao PlatformCode = "TAOBAO"
	// PlatformCodeDouyin represents Douyin shop
	PlatformCodeDouyin PlatformCode = "DOUYIN"
	// PlatformCodeKuaishou represents Kuaishou shop
	PlatformCodeKuaishou PlatformCode = "KUAISHOU"
)

// SupportedPlatforms lists every platform with a connector
var SupportedPlatforms = []PlatformCode{
	PlatformCodeTaobao,
	PlatformCodeDouyin,
	PlatformCodeKuaishou,
}

// IsValid returns true if the platform code is valid
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeTaobao, PlatformCodeDouyin, PlatformCodeKuaishou:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// Slug returns the lower-case form used in webhook routes
func (c PlatformCode) Slug() string {
	return strings.ToLower(string(c))
}

// ParsePlatformCode accepts either the code or its route slug
func ParsePlatformCode(s string) (PlatformCode, error) {
	code := PlatformCode(strings.ToUpper(strings.TrimSpace(s)))
	if !code.IsValid() {
		return "", ErrPlatformNotSupported
	}
	return code, nil
}
