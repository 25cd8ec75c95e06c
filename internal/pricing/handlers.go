package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/catalog"
	"github.com/atelier-doudou/backend-stickers/internal/common"
	"github.com/atelier-doudou/backend-stickers/internal/customer"
	"github.com/atelier-doudou/backend-stickers/internal/doudou"
	"github.com/atelier-doudou/backend-stickers/internal/ledger"
	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/obs"
	"github.com/atelier-doudou/backend-stickers/internal/shipping"
)

// Fingerprinter derives the content fingerprint for a reference photo.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, rawURL string) string
}

// Handler exposes the pricing endpoints to the checkout surface.
type Handler struct {
	Engine    *Engine
	Shipping  *shipping.Engine
	Customers CustomerSource
	History   HistorySource
	Ledger    *ledger.Recorder
	Photos    Fingerprinter
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

func (h *Handler) photoHash(ctx context.Context, rawURL string) string {
	if h.Photos != nil {
		return h.Photos.Fingerprint(ctx, rawURL)
	}
	return common.PhotoFingerprint(rawURL)
}

type calculateRequest struct {
	Email          string   `json:"email" validate:"required,email"`
	PetName        string   `json:"petName" validate:"required,max=120"`
	AnimalType     string   `json:"animalType" validate:"required,max=120"`
	NumberOfSheets int      `json:"numberOfSheets" validate:"required,min=1,max=50"`
	UpsellIDs      []string `json:"upsellIds" validate:"max=20"`
	PhotoURL       string   `json:"photoUrl" validate:"omitempty,url"`
}

type discountDTO struct {
	Type       string  `json:"type"`
	Percentage int     `json:"percentage"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason"`
}

type breakdownDTO struct {
	BasePrice     float64 `json:"basePrice"`
	UpsellPrice   float64 `json:"upsellPrice"`
	ShippingPrice float64 `json:"shippingPrice"`
	Discount      float64 `json:"discount"`
}

type pricingDTO struct {
	OriginalPrice float64      `json:"originalPrice"`
	FinalPrice    float64      `json:"finalPrice"`
	Discount      discountDTO  `json:"discount"`
	Savings       float64      `json:"savings"`
	Breakdown     breakdownDTO `json:"breakdown"`
	Fallback      bool         `json:"fallback,omitempty"`
}

type shippingDTO struct {
	Cost   float64 `json:"cost"`
	Reason string  `json:"reason"`
}

// Calculate prices a cart: shipping tier first, then the smart pricing
// engine. The response always carries a usable total unless the base catalog
// article is missing, which is the one fatal case.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid pricing request", validationDetails(err))
		return
	}

	quote := h.Shipping.Quote(req.UpsellIDs)
	res, err := h.Engine.Calculate(r.Context(), Input{
		Email:        common.NormalizeEmail(req.Email),
		PetName:      req.PetName,
		AnimalType:   req.AnimalType,
		SheetCount:   req.NumberOfSheets,
		UpsellIDs:    req.UpsellIDs,
		ShippingCost: quote.Cost,
		PhotoHash:    h.photoHash(r.Context(), req.PhotoURL),
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNoBaseArticle) {
			obs.CountPricingRequest("catalog_error")
			common.JSONAppError(w, common.NewAppError("CATALOG_UNAVAILABLE",
				"base article missing, checkout cannot be priced", http.StatusServiceUnavailable, err))
			return
		}
		obs.CountPricingRequest("error")
		h.Logger.Error().Err(err).Str("email", req.Email).Msg("pricing request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to price the cart", nil)
		return
	}

	obs.CountPricingRequest("ok")
	obs.CountDiscountApplied(string(res.Discount.Type))

	message := "full price applied"
	if res.Discount.Type != DiscountNone {
		message = res.Discount.Reason
	} else if res.Fallback {
		message = res.Discount.Reason
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"pricing":  toPricingDTO(res),
		"shipping": shippingDTO{Cost: money.Euros(quote.Cost), Reason: quote.Reason},
		"message":  message,
	})
}

// Customer answers the read queries keyed by email: the discount ledger
// history or the current eligibility breakdown. Unknown customers get empty
// payloads, never errors.
func (h *Handler) Customer(w http.ResponseWriter, r *http.Request) {
	email := common.NormalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required", nil)
		return
	}
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	switch action {
	case "history":
		h.history(w, r, email)
	case "eligibility":
		h.eligibility(w, r, email)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "action must be history or eligibility", nil)
	}
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, email string) {
	cust, err := h.Customers.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			common.JSON(w, http.StatusOK, map[string]any{
				"entries":      []ledger.Entry{},
				"totalSavings": 0.0,
			})
			return
		}
		h.Logger.Error().Err(err).Str("email", email).Msg("customer lookup failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load discount history", nil)
		return
	}
	history, err := h.Ledger.CustomerHistory(r.Context(), cust.ID)
	if err != nil {
		h.Logger.Error().Err(err).Str("customer_id", cust.ID).Msg("ledger query failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load discount history", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"entries":      history.Entries,
		"totalSavings": money.Euros(history.TotalSavings),
	})
}

func (h *Handler) eligibility(w http.ResponseWriter, r *http.Request, email string) {
	payload := map[string]any{
		"repeatDoudou":   false,
		"upsellDiscount": false,
		"loyaltyProgram": false,
		"stats": map[string]any{
			"totalOrders":  0,
			"totalSpent":   0.0,
			"totalSavings": 0.0,
		},
	}
	cust, err := h.Customers.FindByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, customer.ErrNotFound) {
			h.Logger.Warn().Err(err).Str("email", email).Msg("customer lookup failed, reporting no eligibility")
		}
		common.JSON(w, http.StatusOK, payload)
		return
	}

	payload["upsellDiscount"] = cust.TotalOrders >= loyaltyMinOrders || cust.TotalSpent >= loyaltyMinSpent
	payload["stats"] = map[string]any{
		"totalOrders":  cust.TotalOrders,
		"totalSpent":   money.Euros(cust.TotalSpent),
		"totalSavings": money.Euros(cust.TotalSavings),
	}

	petName := strings.TrimSpace(r.URL.Query().Get("petName"))
	animalType := strings.TrimSpace(r.URL.Query().Get("animalType"))
	if petName != "" && animalType != "" && h.History != nil {
		if _, err := h.History.Find(r.Context(), cust.ID, petName, animalType); err == nil {
			payload["repeatDoudou"] = true
		} else if !errors.Is(err, doudou.ErrNotFound) {
			h.Logger.Warn().Err(err).Str("customer_id", cust.ID).Msg("history lookup failed, reporting no repeat eligibility")
		}
	}
	common.JSON(w, http.StatusOK, payload)
}

func toPricingDTO(res Result) pricingDTO {
	return pricingDTO{
		OriginalPrice: money.Euros(res.OriginalPrice),
		FinalPrice:    money.Euros(res.FinalPrice),
		Discount: discountDTO{
			Type:       string(res.Discount.Type),
			Percentage: res.Discount.Percent,
			Amount:     money.Euros(res.Discount.Amount),
			Reason:     res.Discount.Reason,
		},
		Savings: money.Euros(res.Savings),
		Breakdown: breakdownDTO{
			BasePrice:     money.Euros(res.Breakdown.Base),
			UpsellPrice:   money.Euros(res.Breakdown.Upsell),
			ShippingPrice: money.Euros(res.Breakdown.Shipping),
			Discount:      money.Euros(res.Breakdown.Discount),
		},
		Fallback: res.Fallback,
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return map[string]any{"fields": fields}
}
