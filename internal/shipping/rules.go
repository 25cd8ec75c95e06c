package shipping

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atelier-doudou/backend-stickers/internal/money"
)

// Tier maps a set of add-on identifiers to a flat shipping cost. Tiers are
// evaluated in table order and the first tier containing any selected add-on
// wins; the final tier with no members acts as the default.
type Tier struct {
	Name     string      `json:"name"`
	AddOnIDs []string    `json:"addOnIds"`
	Cost     money.Cents `json:"cost"`
	Reason   string      `json:"reason"`
}

// Quote is the outcome of a shipping rule evaluation.
type Quote struct {
	Cost   money.Cents `json:"cost"`
	Reason string      `json:"reason"`
}

// Engine resolves shipping quotes against a configured tier table.
type Engine struct {
	tiers []Tier
}

// NewEngine builds an engine from an ordered tier table. An empty table
// falls back to the default tiers.
func NewEngine(tiers []Tier) *Engine {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Engine{tiers: tiers}
}

// DefaultTiers returns the stock tier table: letterbox stickers, bulkier
// parcels for plush keyrings, tracked parcels for the photo book.
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:     "book",
			AddOnIDs: []string{"photo-book", "souvenir-book"},
			Cost:     690,
			Reason:   "tracked parcel shipping for the photo book",
		},
		{
			Name:     "premium",
			AddOnIDs: []string{"plush-keyring", "magnet-pack", "tote-bag"},
			Cost:     490,
			Reason:   "parcel shipping for physical add-ons",
		},
		{
			Name:     "stickers",
			AddOnIDs: nil,
			Cost:     350,
			Reason:   "letterbox shipping for sticker sheets",
		},
	}
}

// ParseTiersJSON decodes a tier table from its JSON configuration form.
func ParseTiersJSON(raw string) ([]Tier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var tiers []Tier
	if err := json.Unmarshal([]byte(trimmed), &tiers); err != nil {
		return nil, fmt.Errorf("parse shipping tiers: %w", err)
	}
	for i, tier := range tiers {
		if tier.Cost < 0 {
			return nil, fmt.Errorf("parse shipping tiers: tier %d has negative cost", i)
		}
	}
	return tiers, nil
}

// Quote returns the shipping cost for the selected add-on identifiers.
// Unknown identifiers are ignored; they never match a premium tier.
func (e *Engine) Quote(addOnIDs []string) Quote {
	selected := make(map[string]struct{}, len(addOnIDs))
	for _, id := range addOnIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			selected[trimmed] = struct{}{}
		}
	}
	var fallback *Tier
	for i := range e.tiers {
		tier := &e.tiers[i]
		if len(tier.AddOnIDs) == 0 {
			if fallback == nil {
				fallback = tier
			}
			continue
		}
		for _, member := range tier.AddOnIDs {
			if _, ok := selected[member]; ok {
				return Quote{Cost: tier.Cost, Reason: tier.Reason}
			}
		}
	}
	if fallback != nil {
		return Quote{Cost: fallback.Cost, Reason: fallback.Reason}
	}
	return Quote{}
}
