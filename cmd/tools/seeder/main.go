package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/atelier-doudou/backend-stickers/internal/money"
)

type article struct {
	ID       string
	Category string
	Price    money.Cents
	Original money.Cents
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedArticles(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedArticles(ctx context.Context, pool *pgxpool.Pool) {
	articles := []article{
		{"sticker-sheet", "base", 1290, 1290},
		{"plush-keyring", "upsell", 990, 1190},
		{"magnet-pack", "upsell", 790, 990},
		{"tote-bag", "upsell", 1490, 1690},
		{"photo-book", "upsell", 2490, 2990},
		{"souvenir-book", "upsell", 1990, 2490},
		{"doudou-duo-pack", "pack", 2190, 2580},
	}

	log.Println("Seeding articles...")
	for _, a := range articles {
		_, err := pool.Exec(ctx, `
			INSERT INTO articles (id, category, price_cents, original_price_cents, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				category = EXCLUDED.category,
				price_cents = EXCLUDED.price_cents,
				original_price_cents = EXCLUDED.original_price_cents,
				active = TRUE`,
			a.ID, a.Category, a.Price, a.Original)
		if err != nil {
			log.Fatalf("Failed to seed article %s: %v", a.ID, err)
		}
	}
	log.Printf("Seeded %d articles", len(articles))
}
