package profile

import (
	"context"
	"fmt"
)

// The platform ships with exactly two test identities, one per role. The
// presentation layer switches between them; the engine only ever sees their
// ids.
var fixedSeeds = []CreateParams{
	{
		Name:  "Rahul Kumar",
		Role:  RoleSeller,
		Phone: "9999990001",
		Email: "rahul@example.com",
	},
	{
		Name:  "Amit Singh",
		Role:  RoleBuyer,
		Phone: "9876543210",
		Email: "amit@example.com",
	},
}

// SeedFixed inserts the two fixed identities if the repository is empty and
// marks the seller as the acting profile. All seeded profiles share the
// supplied passcode hash. Existing profiles are returned untouched.
func SeedFixed(ctx context.Context, repo Repository, passcodeHash string) ([]Profile, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	profiles := make([]Profile, 0, len(fixedSeeds))
	for _, seed := range fixedSeeds {
		seed.PasscodeHash = passcodeHash
		p, err := repo.Create(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("profile: seed %s: %w", seed.Phone, err)
		}
		profiles = append(profiles, p)
	}

	if err := repo.SetCurrent(ctx, profiles[0].ID); err != nil {
		return nil, fmt.Errorf("profile: seed current selector: %w", err)
	}
	return profiles, nil
}
