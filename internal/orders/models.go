package orders

import (
	"regexp"
	"time"
)

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ProductRef is the catalog projection attached to line items in responses.
type ProductRef struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Metal    string `json:"metal"`
}

// LineItem is a snapshot of the product at order time. Price, metal and
// weight are copied, not referenced, so later catalog edits never rewrite
// order history. Product is filled on reads only and never persisted.
type LineItem struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     float64     `json:"price"`
	Quantity  int         `json:"quantity"`
	Metal     string      `json:"metal,omitempty"`
	Weight    float64     `json:"weight,omitempty"`
	Product   *ProductRef `json:"product,omitempty"`
}

type Order struct {
	ID             string     `json:"id"`
	IdempotencyKey string     `json:"idempotencyKey,omitempty"`
	Customer       Customer   `json:"customer"`
	Items          []LineItem `json:"items"`
	Total          float64    `json:"total"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

// CheckoutInput mirrors the POST /api/orders body. Status is accepted for
// enum validation only; a created order always starts pending.
type CheckoutInput struct {
	Customer       Customer   `json:"customer"`
	Items          []LineItem `json:"items"`
	Total          float64    `json:"total"`
	Status         string     `json:"status,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey,omitempty"`
}

var emailRe = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

func (in *CheckoutInput) Validate() error {
	verr := &ValidationError{}
	if in.Customer.Name == "" {
		verr.add("", "Customer name is required")
	}
	switch {
	case in.Customer.Email == "":
		verr.add("", "Customer email is required")
	case !emailRe.MatchString(in.Customer.Email):
		verr.add("", "Please enter a valid email")
	}
	if in.Customer.Phone == "" {
		verr.add("", "Customer phone is required")
	}
	if in.Customer.Address == "" {
		verr.add("", "Customer address is required")
	}
	if len(in.Items) == 0 {
		verr.add("", "Order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			verr.add("", "Item product id is required")
			continue
		}
		if it.Quantity < 1 {
			verr.add(it.ProductID, "Quantity must be at least 1 for product %s", it.ProductID)
		}
		if it.Price < 0 {
			verr.add(it.ProductID, "Price must be positive for product %s", it.ProductID)
		}
	}
	if in.Total < 0 {
		verr.add("", "Total must be positive")
	}
	if in.Status != "" {
		if _, err := ParseStatus(in.Status); err != nil {
			verr.add("", "%s", err.Error())
		}
	}
	return verr.orNil()
}
