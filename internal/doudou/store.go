package doudou

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no history record exists for the tuple.
var ErrNotFound = errors.New("doudou: history record not found")

// Record tracks how many times a customer ordered the exact same named
// stuffed animal. Uniqueness is on (customer, pet name, animal type) with
// case-sensitive matching on the strings as supplied by the caller.
type Record struct {
	ID           string
	CustomerID   string
	PetName      string
	AnimalType   string
	PhotoHash    string
	OrderCount   int32
	FirstOrderAt time.Time
	LastOrderAt  time.Time
}

// Querier captures the database operations required by the history store.
type Querier interface {
	Find(ctx context.Context, customerID, petName, animalType string) (Record, error)
	RecordOrder(ctx context.Context, customerID, petName, animalType, photoHash string) (Record, error)
}

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

// Find looks up the history record for the exact tuple.
func (q PGQuerier) Find(ctx context.Context, customerID, petName, animalType string) (Record, error) {
	const stmt = `
		SELECT id, customer_id, pet_name, animal_type, photo_hash, order_count, first_order_at, last_order_at
		FROM doudou_history
		WHERE customer_id = $1 AND pet_name = $2 AND animal_type = $3`
	var rec Record
	err := q.Pool.QueryRow(ctx, stmt, customerID, petName, animalType).
		Scan(&rec.ID, &rec.CustomerID, &rec.PetName, &rec.AnimalType, &rec.PhotoHash,
			&rec.OrderCount, &rec.FirstOrderAt, &rec.LastOrderAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("find doudou history: %w", err)
	}
	return rec, nil
}

// RecordOrder upserts the history record for an ordered item: first order
// creates the row, repeats increment order_count and refresh last_order_at
// in a single atomic statement. A stored photo hash is never overwritten;
// it is only filled in when the record has none yet.
func (q PGQuerier) RecordOrder(ctx context.Context, customerID, petName, animalType, photoHash string) (Record, error) {
	const stmt = `
		INSERT INTO doudou_history (customer_id, pet_name, animal_type, photo_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, pet_name, animal_type) DO UPDATE SET
			order_count = doudou_history.order_count + 1,
			last_order_at = NOW(),
			photo_hash = CASE
				WHEN doudou_history.photo_hash = '' THEN EXCLUDED.photo_hash
				ELSE doudou_history.photo_hash
			END
		RETURNING id, customer_id, pet_name, animal_type, photo_hash, order_count, first_order_at, last_order_at`
	var rec Record
	err := q.Pool.QueryRow(ctx, stmt, customerID, petName, animalType, photoHash).
		Scan(&rec.ID, &rec.CustomerID, &rec.PetName, &rec.AnimalType, &rec.PhotoHash,
			&rec.OrderCount, &rec.FirstOrderAt, &rec.LastOrderAt)
	if err != nil {
		return Record{}, fmt.Errorf("record doudou order: %w", err)
	}
	return rec, nil
}
