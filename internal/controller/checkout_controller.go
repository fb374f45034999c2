package controller

import (
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type CheckoutController struct {
	checkout *service.CheckoutService
	authz    *service.AuthzService
	storeURL string
	logger   zerolog.Logger
}

func NewCheckoutController(checkout *service.CheckoutService, authz *service.AuthzService, storeURL string, logger zerolog.Logger) *CheckoutController {
	return &CheckoutController{
		checkout: checkout,
		authz:    authz,
		storeURL: storeURL,
		logger:   logger.With().Str("component", "checkout").Logger(),
	}
}

// Pay handles GET /payment/mercadopago/pay/{productID}
func (h *CheckoutController) Pay(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authz.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		redirectWithFlash(w, r, h.storeURL, flashError, msgProductUnavailable)
		return
	}

	res, err := h.checkout.Start(r.Context(), service.StartCheckoutRequest{UserID: userID, ProductID: productID})
	if err != nil {
		logger := h.logger.With().Str("user_id", userID.String()).Str("product_id", productID.String()).Logger()
		switch {
		case errors.Is(err, domainErrors.ErrProductNotFound):
			logger.Warn().Err(err).Msg("Checkout for unavailable product")
			redirectWithFlash(w, r, h.storeURL, flashError, msgProductUnavailable)
		case errors.Is(err, domainErrors.ErrConfiguration):
			logger.Error().Err(err).Msg("Checkout misconfigured")
			redirectWithFlash(w, r, h.storeURL, flashError, msgPaymentsDisabled)
		default:
			logger.Error().Err(err).Msg("Checkout failed")
			redirectWithFlash(w, r, h.storeURL, flashError, msgPaymentFailed)
		}
		return
	}

	http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
}
