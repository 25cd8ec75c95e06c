package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-doudou/backend-stickers/internal/money"
)

// ErrNoBaseArticle is returned when the catalog has no active base article.
// Checkout cannot proceed without a per-sheet price, so this error is fatal
// to any pricing request.
var ErrNoBaseArticle = errors.New("catalog: no active base article")

// Category classifies a purchasable article.
type Category string

// Article categories.
const (
	CategoryBase   Category = "base"
	CategoryUpsell Category = "upsell"
	CategoryPack   Category = "pack"
)

// Article is a purchasable catalog unit.
type Article struct {
	ID            string      `json:"id"`
	Category      Category    `json:"category"`
	Price         money.Cents `json:"price"`
	OriginalPrice money.Cents `json:"originalPrice"`
	Active        bool        `json:"active"`
}

// Querier captures the database reads required by the catalog store.
type Querier interface {
	ListActiveArticles(ctx context.Context) ([]Article, error)
}

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

// ListActiveArticles returns every active article ordered by category and id.
func (q PGQuerier) ListActiveArticles(ctx context.Context) ([]Article, error) {
	const stmt = `
		SELECT id, category, price_cents, original_price_cents, active
		FROM articles
		WHERE active = TRUE
		ORDER BY category, id`
	rows, err := q.Pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list active articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Category, &a.Price, &a.OriginalPrice, &a.Active); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// Store serves catalog reads through an optional cache-aside Redis layer.
type Store struct {
	Q     Querier
	Cache *Cache
}

const articlesCacheKey = "catalog:articles:active"

// ActiveArticles lists all active articles, preferring the cache.
func (s *Store) ActiveArticles(ctx context.Context) ([]Article, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("catalog: store not configured")
	}
	var cached []Article
	if hit, err := s.Cache.GetJSON(ctx, articlesCacheKey, &cached); err == nil && hit {
		return cached, nil
	}
	articles, err := s.Q.ListActiveArticles(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, articlesCacheKey, articles)
	return articles, nil
}

// Invalidate evicts the active-articles cache entry after catalog edits.
func (s *Store) Invalidate(ctx context.Context) {
	s.Cache.Delete(ctx, articlesCacheKey)
}

// Snapshot is a point-in-time view of the purchasable catalog split by role.
type Snapshot struct {
	Base    Article
	Upsells map[string]Article
}

// Snapshot resolves the active base article and the active upsell set.
// Exactly one active base article is expected; none is fatal.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	articles, err := s.ActiveArticles(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Upsells: make(map[string]Article)}
	haveBase := false
	for _, a := range articles {
		if !a.Active {
			continue
		}
		switch a.Category {
		case CategoryBase:
			if !haveBase {
				snap.Base = a
				haveBase = true
			}
		case CategoryUpsell:
			snap.Upsells[a.ID] = a
		}
	}
	if !haveBase {
		return Snapshot{}, ErrNoBaseArticle
	}
	return snap, nil
}
