package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("orders: order not found")

	// ErrDuplicateKey is the store's signal that another order already holds
	// the idempotency key. Checkout converts it into the existing order.
	ErrDuplicateKey = errors.New("orders: idempotency key already used")

	ErrCancelCompleted = errors.New("orders: cannot cancel completed order")
)

type Violation struct {
	ProductID string `json:"productId,omitempty"`
	Message   string `json:"message"`
}

// ValidationError collects every problem with a checkout or status request so
// the caller sees all of them at once.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) add(productID, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{
		ProductID: productID,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
