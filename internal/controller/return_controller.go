package controller

import (
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/rs/zerolog"
)

// ReturnController handles the browser coming back from the hosted checkout.
type ReturnController struct {
	reconciler *service.ReconcileService
	authz      *service.AuthzService
	homeURL    string
	logger     zerolog.Logger
}

func NewReturnController(reconciler *service.ReconcileService, authz *service.AuthzService, homeURL string, logger zerolog.Logger) *ReturnController {
	return &ReturnController{
		reconciler: reconciler,
		authz:      authz,
		homeURL:    homeURL,
		logger:     logger.With().Str("component", "return").Logger(),
	}
}

// Checker handles GET /payment/mercadopago/checker
func (h *ReturnController) Checker(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("payment_id")
	logger := h.logger.With().Str("external_payment_id", externalID).Logger()

	viewer, err := h.authz.CurrentUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.reconciler.Reconcile(r.Context(), service.ReconcileRequest{
		ExternalPaymentID: externalID,
		Source:            service.SourceReturn,
		ViewerID:          &viewer,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrProviderUnavailable),
			errors.Is(err, domainErrors.ErrProviderRejected),
			errors.Is(err, domainErrors.ErrInvalidInput),
			errors.Is(err, domainErrors.ErrPaymentNotFound):
			logger.Warn().Err(err).Msg("Payment could not be resolved on return")
			redirectWithFlash(w, r, h.homeURL, flashError, msgPaymentUnknown)
		default:
			logger.Error().Err(err).Msg("Payment return failed")
			writeError(w, err)
		}
		return
	}

	switch res.Outcome {
	case payment.OutcomePaid:
		redirectWithFlash(w, r, h.homeURL, flashSuccess, msgPaymentSuccessful)
	case payment.OutcomeCancelled:
		redirectWithFlash(w, r, h.homeURL, flashInfo, msgPaymentCancelledBy)
	case payment.OutcomeProcessing:
		redirectWithFlash(w, r, h.homeURL, flashInfo, msgPaymentProcessing)
	default:
		redirectWithFlash(w, r, h.homeURL, flashError, msgPaymentUnknown)
	}
}

// Cancel handles GET /payment/cancel
func (h *ReturnController) Cancel(w http.ResponseWriter, r *http.Request) {
	redirectWithFlash(w, r, h.homeURL, flashInfo, msgPaymentCancelled)
}
