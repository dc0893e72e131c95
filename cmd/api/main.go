package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"escrowflow/agreement"
	"escrowflow/analytics"
	"escrowflow/db"
	"escrowflow/lifecycle"
	"escrowflow/listing"
	"escrowflow/notification"
	"escrowflow/profile"
	"escrowflow/session"
	"escrowflow/transaction"
)

func main() {
	ctx := context.Background()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret"
	}
	seedPasscode := os.Getenv("SEED_PASSCODE")
	if seedPasscode == "" {
		seedPasscode = "1234"
	}

	var (
		profiles      profile.Repository
		agreements    agreement.Repository
		transactions  transaction.Repository
		notifications notification.Repository
		listings      listing.Repository
	)

	// With DATABASE_URL the state lives in PostgreSQL; without it everything
	// runs on the in-memory store, which is enough for a single-node demo.
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		pool, err := db.NewPool(ctx, connString)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()

		profiles = profile.NewRepository(pool)
		agreements = agreement.NewRepository(pool)
		transactions = transaction.NewRepository(pool)
		notifications = notification.NewRepository(pool)
		listings = listing.NewRepository(pool)
		log.Printf("state store: postgres")
	} else {
		profiles = profile.NewMemoryRepository()
		agreements = agreement.NewMemoryRepository()
		transactions = transaction.NewMemoryRepository()
		notifications = notification.NewMemoryRepository()
		listings = listing.NewMemoryRepository()
		log.Printf("state store: memory")
	}

	passcodeHash, err := session.HashPasscode(seedPasscode)
	if err != nil {
		log.Fatalf("hash seed passcode: %v", err)
	}
	seeded, err := profile.SeedFixed(ctx, profiles, passcodeHash)
	if err != nil {
		log.Fatalf("seed profiles: %v", err)
	}
	for _, p := range seeded {
		if p.Role != profile.RoleSeller {
			continue
		}
		if _, err := listing.SeedCatalog(ctx, listings, p.ID, p.Phone); err != nil {
			log.Fatalf("seed catalog: %v", err)
		}
	}
	log.Printf("seeded %d profiles", len(seeded))

	server := &Server{
		sessions: session.NewService(profiles, jwtSecret),
		profiles: profiles,
		listings: listing.NewService(listings),
		engine:   lifecycle.NewEngine(profiles, agreements, transactions, notifications),
		calc:     analytics.NewCalculator(transactions, notifications),
	}

	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, server.routes()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
