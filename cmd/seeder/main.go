package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/wallseat/payment-transaction-model/internal/config"
	"github.com/wallseat/payment-transaction-model/internal/store"
)

var (
	totalAccounts  = flag.Int("accounts", 1000, "Number of accounts to seed")
	initialBalance = flag.String("balance", "100.00", "Opening balance per account")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	balance, err := decimal.NewFromString(*initialBalance)
	if err != nil {
		log.Fatalf("Invalid balance: %v", err)
	}

	ctx := context.Background()
	ledger, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer ledger.Close()

	log.Println("--- Seeding Database ---")

	if err := ledger.EnsureSchema(ctx); err != nil {
		log.Fatalf("Schema setup failed: %v", err)
	}

	seeded := 0
	for i := 1; i <= *totalAccounts; i++ {
		if _, err := ledger.CreateAccount(ctx, fmt.Sprintf("user-%04d", i), balance); err != nil {
			// Unique name collision means this run already happened.
			log.Printf("Skipping user-%04d: %v", i, err)
			continue
		}
		seeded++
	}

	log.Printf("Successfully seeded %d accounts with balance %s.", seeded, balance)
}
