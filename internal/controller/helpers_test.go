package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		payload      any
		expectedBody string
	}{
		{
			name:         "simple map",
			status:       http.StatusOK,
			payload:      map[string]string{"message": "hello"},
			expectedBody: `{"message":"hello"}`,
		},
		{
			name:         "struct",
			status:       http.StatusCreated,
			payload:      struct{ ID string }{ID: "123"},
			expectedBody: `{"ID":"123"}`,
		},
		{
			name:         "error response",
			status:       http.StatusBadRequest,
			payload:      ErrorResponse{Error: "bad request", Code: "invalid_input"},
			expectedBody: `{"error":"bad request","code":"invalid_input"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, tt.status, tt.payload)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewValidationError("email", "must be valid email")

	writeError(w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "email")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "payment not found",
			err:            domainErrors.ErrPaymentNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "product not found",
			err:            domainErrors.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   "not_found",
		},
		{
			name:           "invalid input",
			err:            domainErrors.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "invalid_input",
		},
		{
			name:           "invalid state transition",
			err:            domainErrors.ErrInvalidStateTransition,
			expectedStatus: http.StatusConflict,
			expectedCode:   "invalid_state_transition",
		},
		{
			name:           "optimistic lock failed",
			err:            domainErrors.ErrOptimisticLockFailed,
			expectedStatus: http.StatusConflict,
			expectedCode:   "conflict",
		},
		{
			name:           "reconciliation conflict",
			err:            errors.Join(domainErrors.ErrReconciliationConflict, domainErrors.ErrOptimisticLockFailed),
			expectedStatus: http.StatusConflict,
			expectedCode:   "conflict",
		},
		{
			name:           "checkout failed",
			err:            fmt.Errorf("%w: %w", domainErrors.ErrCheckoutFailed, domainErrors.ErrProviderUnavailable),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "checkout_failed",
		},
		{
			name:           "provider unavailable",
			err:            domainErrors.ErrProviderUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "provider_unavailable",
		},
		{
			name:           "unauthorized",
			err:            domainErrors.ErrUnauthorized,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
		{
			name:           "forbidden",
			err:            domainErrors.NewDomainError("forbidden", "not yours", domainErrors.ErrForbidden),
			expectedStatus: http.StatusForbidden,
			expectedCode:   "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_ConfigurationHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.Configuration("mercadopago.access_token", "is required"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "service misconfigured", response.Error)
	assert.NotContains(t, w.Body.String(), "access_token")
}

func TestWriteError_OptimisticLockFailed_CustomMessage(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.ErrOptimisticLockFailed)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "concurrent modification, please retry", response.Error)
	assert.Equal(t, "conflict", response.Code)
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	err := domainErrors.NewDomainError("custom_error", "custom error message", nil)

	writeError(w, err)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "custom_error", response.Code)
	assert.Equal(t, "custom error message", response.Error)
}

func TestWriteError_UnknownError_FallbackToInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	err := errors.New("unexpected error")

	writeError(w, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	json.NewDecoder(w.Body).Decode(&response)
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, validateStruct(listPaymentsQuery{Status: "paid", Limit: 10}))
	assert.NoError(t, validateStruct(listPaymentsQuery{}))

	err := validateStruct(listPaymentsQuery{Limit: 101})
	var validationErr *domainErrors.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "Limit", validationErr.Field)
	assert.Contains(t, validationErr.Message, "validation failed")

	err = validateStruct(listPaymentsQuery{Status: "refunded"})
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "Status", validationErr.Field)
}
