package listing

import "time"

// Kind says whether a listing offers a physical product or a service.
type Kind string

const (
	KindProduct Kind = "product"
	KindService Kind = "service"
)

// Status controls catalog visibility.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Listing is a catalog entry a seller publishes. A buyer starting a deal from
// a listing gets its title, price, and terms copied into the proposal.
type Listing struct {
	ID          string
	SellerID    string
	SellerPhone string
	Title       string
	Kind        Kind
	Price       int64
	Terms       string
	Description string
	Status      Status
	CreatedAt   time.Time
}
