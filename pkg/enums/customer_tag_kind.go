package enums

import "fmt"

// CustomerTagKind discriminates which table a customer_tags row points at.
type CustomerTagKind string

const (
	CustomerTagKindRegistered CustomerTagKind = "registered"
	CustomerTagKindLead       CustomerTagKind = "lead"
)

// IsValid reports whether the value is a known CustomerTagKind.
func (k CustomerTagKind) IsValid() bool {
	return k == CustomerTagKindRegistered || k == CustomerTagKindLead
}

// ParseCustomerTagKind converts raw input into a CustomerTagKind.
func ParseCustomerTagKind(value string) (CustomerTagKind, error) {
	kind := CustomerTagKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid customer tag kind %q", value)
	}
	return kind, nil
}
