package catalog

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("catalog: product not found")

type Category string

const (
	CategoryRings     Category = "rings"
	CategoryNecklaces Category = "necklaces"
	CategoryEarrings  Category = "earrings"
	CategoryBracelets Category = "bracelets"
	CategoryPendants  Category = "pendants"
)

var categories = map[Category]bool{
	CategoryRings:     true,
	CategoryNecklaces: true,
	CategoryEarrings:  true,
	CategoryBracelets: true,
	CategoryPendants:  true,
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !categories[c] {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

type Metal string

const (
	MetalGold      Metal = "gold"
	MetalSilver    Metal = "silver"
	MetalPlatinum  Metal = "platinum"
	MetalWhiteGold Metal = "white-gold"
	MetalRoseGold  Metal = "rose-gold"
)

var metals = map[Metal]bool{
	MetalGold:      true,
	MetalSilver:    true,
	MetalPlatinum:  true,
	MetalWhiteGold: true,
	MetalRoseGold:  true,
}

func ParseMetal(s string) (Metal, error) {
	m := Metal(s)
	if !metals[m] {
		return "", fmt.Errorf("invalid metal %q", s)
	}
	return m, nil
}

// Product is the catalog record. Stock is mutated only through the inventory
// ledger; every other field belongs to catalog management.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Metal       Metal     `json:"metal"`
	Weight      float64   `json:"weight"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Product) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("product name is required"))
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseMetal(string(p.Metal)); err != nil {
		errs = append(errs, err)
	}
	if p.Weight < 0.1 {
		errs = append(errs, errors.New("weight must be at least 0.1g"))
	}
	if p.Price < 0 {
		errs = append(errs, errors.New("price must be positive"))
	}
	if p.Stock < 0 {
		errs = append(errs, errors.New("stock cannot be negative"))
	}
	return errors.Join(errs...)
}
