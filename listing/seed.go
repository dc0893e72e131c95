package listing

import (
	"context"
	"fmt"
)

// SeedCatalog publishes a small starter catalog for the given seller when the
// seller has no active listings yet.
func SeedCatalog(ctx context.Context, repo Repository, sellerID, sellerPhone string) ([]Listing, error) {
	existing, err := repo.ListActiveBySeller(ctx, sellerPhone)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	seeds := []CreateParams{
		{
			Title:       "Used Laptop",
			Kind:        KindProduct,
			Price:       25000,
			Terms:       "3-day delivery, 7-day warranty",
			Description: "Refurbished laptop in excellent condition with 8GB RAM and 256GB SSD.",
		},
		{
			Title:       "Mobile Repair Service",
			Kind:        KindService,
			Price:       500,
			Terms:       "Same day service, 1-month warranty",
			Description: "Professional repair service for all smartphone models.",
		},
		{
			Title:       "Graphic Design Service",
			Kind:        KindService,
			Price:       2000,
			Terms:       "2 revisions, delivery in 3 days",
			Description: "Professional graphic design for logos, banners, and marketing materials.",
		},
	}

	out := make([]Listing, 0, len(seeds))
	for _, seed := range seeds {
		seed.SellerID = sellerID
		seed.SellerPhone = sellerPhone
		l, err := repo.Create(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("listing: seed %q: %w", seed.Title, err)
		}
		out = append(out, l)
	}
	return out, nil
}
