package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/common"
	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/pricing"
)

// Handler exposes the order finalization endpoint.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type finalizeRequest struct {
	OrderRef      string  `json:"orderRef" validate:"required,max=64"`
	Email         string  `json:"email" validate:"required,email"`
	PetName       string  `json:"petName" validate:"required,max=120"`
	AnimalType    string  `json:"animalType" validate:"required,max=120"`
	PhotoURL      string  `json:"photoUrl" validate:"omitempty,url"`
	OriginalPrice float64 `json:"originalPrice" validate:"required,gt=0"`
	FinalPrice    float64 `json:"finalPrice" validate:"required,gt=0"`
	DiscountType  string  `json:"discountType" validate:"omitempty,oneof=none repeat_doudou upsell loyalty"`
	DiscountPct   int     `json:"discountPercentage" validate:"min=0,max=100"`
	Reason        string  `json:"reason" validate:"max=300"`
}

// Finalize records a completed order. Best-effort writes are reported as
// flags; the endpoint fails only when the request itself is unusable.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		details := any(nil)
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			details = map[string]any{"fields": fields}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid finalize request", details)
		return
	}
	if req.FinalPrice > req.OriginalPrice {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "finalPrice cannot exceed originalPrice", nil)
		return
	}

	recorded, err := h.Service.Finalize(r.Context(), Input{
		OrderRef:      req.OrderRef,
		Email:         req.Email,
		PetName:       req.PetName,
		AnimalType:    req.AnimalType,
		PhotoURL:      req.PhotoURL,
		OriginalPrice: money.FromEuros(req.OriginalPrice),
		FinalPrice:    money.FromEuros(req.FinalPrice),
		DiscountType:  pricing.DiscountType(req.DiscountType),
		DiscountPct:   req.DiscountPct,
		Reason:        req.Reason,
	})
	if err != nil {
		h.Logger.Error().Err(err).Str("order_ref", req.OrderRef).Msg("order finalization failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to finalize order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"recorded": recorded,
	})
}
