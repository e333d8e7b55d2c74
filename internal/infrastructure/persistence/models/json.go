package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/storefront/backend/internal/domain/integration"
)

// JSONMap stores free-form metadata in a jsonb column
type JSONMap map[string]any

// Value implements driver.Valuer for database storage
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *JSONMap) Scan(value any) error {
	data, err := scanBytes(value, "JSONMap")
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// StringList stores a list of strings in a jsonb column
type StringList []string

// Value implements driver.Valuer for database storage
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (l *StringList) Scan(value any) error {
	data, err := scanBytes(value, "StringList")
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// OrderLines stores order items in a jsonb column
type OrderLines []integration.OrderItem

// Value implements driver.Valuer for database storage
func (o OrderLines) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (o *OrderLines) Scan(value any) error {
	data, err := scanBytes(value, "OrderLines")
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		*o = OrderLines{}
		return nil
	}
	return json.Unmarshal(data, o)
}

func scanBytes(value any, target string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot scan %T into %s", value, target)
	}
}
