package controller

import (
	"net/http"
	"strconv"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentController serves the signed-in user's payment history.
type PaymentController struct {
	paymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.paymentService.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}

// GetPaymentEvents handles GET /api/v1/payments/{id}/events
func (h *PaymentController) GetPaymentEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	events, err := h.paymentService.GetPaymentEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PaymentEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromPaymentEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentController) ListPayments(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := service.ListPaymentsRequest{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status := payment.Status(q.Status)
		req.Status = &status
	}

	payments, err := h.paymentService.ListPayments(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, FromPayment(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseListQuery(r *http.Request) (listPaymentsQuery, error) {
	values := r.URL.Query()
	q := listPaymentsQuery{Status: values.Get("status")}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, domainErrors.NewValidationError(name, "must be an integer")
		}
		*dst = n
	}

	return q, validateStruct(q)
}
