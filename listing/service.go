package listing

import "context"

// Service exposes business-level catalog operations.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Publish adds a new active listing to the catalog.
func (s *Service) Publish(ctx context.Context, params CreateParams) (Listing, error) {
	return s.repo.Create(ctx, params)
}

// GetByID returns the listing for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Listing, error) {
	return s.repo.GetByID(ctx, id)
}

// ActiveBySeller returns a seller's live catalog, newest first.
func (s *Service) ActiveBySeller(ctx context.Context, sellerPhone string) ([]Listing, error) {
	return s.repo.ListActiveBySeller(ctx, sellerPhone)
}

// Remove takes a listing off the catalog without deleting it.
func (s *Service) Remove(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}
