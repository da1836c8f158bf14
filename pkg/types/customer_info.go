package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// CustomerInfo is the contact snapshot captured on a session at checkout
// time. It is stored as JSON so later edits to the customer record do not
// rewrite history.
type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// HasContact reports whether at least one reachable field is present.
func (c CustomerInfo) HasContact() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}

// Value serializes the snapshot for the JSON column.
func (c CustomerInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the snapshot from the JSON column.
func (c *CustomerInfo) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("unsupported customer info column type %T", value)
	}
}
