package catalog

import "context"

// SampleProducts returns the demo catalog used by the init-data endpoint.
func SampleProducts() []Product {
	return []Product{
		{
			Name: "Diamond Solitaire Ring", Category: CategoryRings, Metal: MetalPlatinum,
			Weight: 5.5, Price: 45000, Stock: 8,
			Description: "Classic solitaire with 1ct diamond",
			Image:       "https://images.unsplash.com/photo-1605100804763-247f67b3557e?w=400&h=400&fit=crop",
		},
		{
			Name: "Gold Chain Necklace", Category: CategoryNecklaces, Metal: MetalGold,
			Weight: 15.2, Price: 38000, Stock: 12,
			Description: "22K gold chain with intricate design",
			Image:       "https://images.unsplash.com/photo-1599643478518-a784e5dc4c8f?w=400&h=400&fit=crop",
		},
		{
			Name: "Pearl Earrings", Category: CategoryEarrings, Metal: MetalSilver,
			Weight: 3.2, Price: 12000, Stock: 15,
			Description: "Elegant pearl drop earrings",
			Image:       "https://images.unsplash.com/photo-1535632066927-ab7c9ab60908?w=400&h=400&fit=crop",
		},
		{
			Name: "Gold Bangle Bracelet", Category: CategoryBracelets, Metal: MetalGold,
			Weight: 25.5, Price: 52000, Stock: 6,
			Description: "Traditional gold bangle with intricate patterns",
			Image:       "https://images.unsplash.com/photo-1611591437281-460bfbe1220a?w=400&h=400&fit=crop",
		},
		{
			Name: "Diamond Pendant", Category: CategoryPendants, Metal: MetalWhiteGold,
			Weight: 4.2, Price: 28000, Stock: 10,
			Description: "Elegant diamond pendant in white gold",
			Image:       "https://images.unsplash.com/photo-1515562141207-7a88fb7ce338?w=400&h=400&fit=crop",
		},
	}
}

// SeedIfEmpty inserts the sample catalog when the products table has no rows.
// Returns true when data was inserted.
func (r *Repo) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	for _, p := range SampleProducts() {
		p := p
		if err := r.Create(ctx, &p); err != nil {
			return false, err
		}
	}
	return true, nil
}
