package enums

import "fmt"

// EndpointClass buckets externally reachable routes for rate limiting.
type EndpointClass string

const (
	EndpointClassCheckout EndpointClass = "checkout"
	EndpointClassWebhook  EndpointClass = "webhook"
	EndpointClassDiscount EndpointClass = "discount"
	EndpointClassAdmin    EndpointClass = "admin"
)

var validEndpointClasses = []EndpointClass{
	EndpointClassCheckout,
	EndpointClassWebhook,
	EndpointClassDiscount,
	EndpointClassAdmin,
}

// String implements fmt.Stringer.
func (e EndpointClass) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EndpointClass.
func (e EndpointClass) IsValid() bool {
	for _, candidate := range validEndpointClasses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEndpointClass converts raw input into an EndpointClass.
func ParseEndpointClass(value string) (EndpointClass, error) {
	for _, candidate := range validEndpointClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid endpoint class %q", value)
}
