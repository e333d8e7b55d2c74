package ecommerce

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/storefront/backend/internal/domain/integration"
)

// ValidationRules are the listing constraints a platform enforces. Products
// that break them are rejected before any network call.
type ValidationRules struct {
	TitleMaxLength       int      `yaml:"title_max_length"`
	DescriptionMaxLength int      `yaml:"description_max_length"`
	MinImages            int      `yaml:"min_images"`
	MaxImages            int      `yaml:"max_images"`
	ForbiddenTerms       []string `yaml:"forbidden_terms"`
	MaxStock             int      `yaml:"max_stock"`
}

// RuleSet holds the rules of every platform
type RuleSet map[integration.PlatformCode]ValidationRules

// DefaultRules returns the built-in rules
func DefaultRules() RuleSet {
	return RuleSet{
		integration.PlatformCodeTaobao: {
			TitleMaxLength:       60,
			DescriptionMaxLength: 25000,
			MinImages:            1,
			MaxImages:            5,
			ForbiddenTerms:       []string{"最低价", "全网第一", "国家级"},
			MaxStock:             999999,
		},
		integration.PlatformCodeDouyin: {
			TitleMaxLength:       30,
			DescriptionMaxLength: 5000,
			MinImages:            1,
			MaxImages:            9,
			ForbiddenTerms:       []string{"最低价", "全网最低", "第一品牌"},
			MaxStock:             999999,
		},
		integration.PlatformCodeKuaishou: {
			TitleMaxLength:       50,
			DescriptionMaxLength: 5000,
			MinImages:            1,
			MaxImages:            9,
			ForbiddenTerms:       []string{"最低价", "史上最低"},
			MaxStock:             999999,
		},
	}
}

// LoadRules returns the default rules overridden by the YAML file at path.
// The file is keyed by platform slug; fields it omits keep their defaults.
// An empty path yields the defaults.
func LoadRules(path string) (RuleSet, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules applies YAML overrides on top of the default rules
func ParseRules(raw []byte) (RuleSet, error) {
	rules := DefaultRules()

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	for slug, node := range doc {
		platform, err := integration.ParsePlatformCode(slug)
		if err != nil {
			return nil, fmt.Errorf("rules file: %w: %s", err, slug)
		}
		r := rules[platform]
		if err := node.Decode(&r); err != nil {
			return nil, fmt.Errorf("rules file: %s: %w", slug, err)
		}
		rules[platform] = r
	}
	return rules, nil
}

// For returns the rules of one platform
func (s RuleSet) For(platform integration.PlatformCode) ValidationRules {
	if r, ok := s[platform]; ok {
		return r
	}
	return DefaultRules()[platform]
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New()
	})
	return structValidator
}

// ValidateProduct checks p against the rules. Failures are non-retryable
// VALIDATION connector errors.
func (r ValidationRules) ValidateProduct(platform integration.PlatformCode, p *integration.Product) error {
	if p == nil {
		return validationError(platform, "product is required")
	}
	if err := getValidator().Struct(p); err != nil {
		return validationError(platform, "%v", err)
	}

	if r.TitleMaxLength > 0 && utf8.RuneCountInString(p.Title) > r.TitleMaxLength {
		return validationError(platform, "title exceeds %d characters", r.TitleMaxLength)
	}
	if r.DescriptionMaxLength > 0 && utf8.RuneCountInString(p.Description) > r.DescriptionMaxLength {
		return validationError(platform, "description exceeds %d characters", r.DescriptionMaxLength)
	}
	if len(p.Images) < r.MinImages {
		return validationError(platform, "at least %d image(s) required", r.MinImages)
	}
	if r.MaxImages > 0 && len(p.Images) > r.MaxImages {
		return validationError(platform, "at most %d images allowed", r.MaxImages)
	}
	for _, term := range r.ForbiddenTerms {
		if term == "" {
			continue
		}
		if strings.Contains(p.Title, term) || strings.Contains(p.Description, term) {
			return validationError(platform, "forbidden term %q", term)
		}
	}
	if err := r.ValidatePrice(platform, p.Price, p.CompareAtPrice); err != nil {
		return err
	}
	return r.ValidateStock(platform, p.Stock)
}

// ValidatePrice requires a positive price and a compare-at price not below it
func (r ValidationRules) ValidatePrice(platform integration.PlatformCode, price decimal.Decimal, compareAt *decimal.Decimal) error {
	if !price.IsPositive() {
		return validationError(platform, "price must be greater than 0")
	}
	if compareAt != nil && compareAt.LessThan(price) {
		return validationError(platform, "compare-at price %s is below price %s", compareAt.String(), price.String())
	}
	return nil
}

// ValidateStock requires stock within [0, MaxStock]
func (r ValidationRules) ValidateStock(platform integration.PlatformCode, stock int) error {
	if stock < 0 {
		return validationError(platform, "stock must not be negative")
	}
	if r.MaxStock > 0 && stock > r.MaxStock {
		return validationError(platform, "stock exceeds %d", r.MaxStock)
	}
	return nil
}

func validationError(platform integration.PlatformCode, format string, args ...any) error {
	return integration.NewConnectorError(integration.ConnectorErrValidation, "%s: %s", platform, fmt.Sprintf(format, args...))
}
