package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/rs/zerolog"
)

// testNotificationID is what the processor sends when a merchant presses
// "test" in its dashboard. It never refers to a real payment.
const testNotificationID = "123456"

const actionPaymentCreated = "payment.created"

// notificationID accepts both `"id": 123` and `"id": "123"`.
type notificationID string

func (n *notificationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = notificationID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	*n = notificationID(num.String())
	return nil
}

type notificationBody struct {
	Topic  string         `json:"topic"`
	Action string         `json:"action"`
	ID     notificationID `json:"id"`
	Data   struct {
		ID notificationID `json:"id"`
	} `json:"data"`
}

type notification struct {
	topic  string
	action string
	id     string
}

func (n notification) isTopic() bool {
	return n.topic == "merchant_order" || n.topic == "payment"
}

func (n notification) kind() string {
	switch {
	case n.isTopic():
		return "topic"
	case n.action == actionPaymentCreated:
		return "created"
	}
	return "payment"
}

// WebhookController receives processor notifications. The response body is
// always {"success": bool}; the status code tells the processor whether to
// redeliver.
type WebhookController struct {
	reconciler *service.ReconcileService
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func NewWebhookController(reconciler *service.ReconcileService, metrics *observability.Metrics, logger zerolog.Logger) *WebhookController {
	return &WebhookController{
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger.With().Str("component", "webhook").Logger(),
	}
}

// Notify handles POST /payment/mercadopago/ipn
func (h *WebhookController) Notify(w http.ResponseWriter, r *http.Request) {
	n, err := parseNotification(r)
	if err != nil {
		h.logger.Warn().Err(err).Str("external_payment_id", n.id).Msg("Unreadable notification body")
	}
	status := h.handle(r, n)
	if h.metrics != nil {
		h.metrics.WebhookNotification.WithLabelValues(n.kind(), strconv.Itoa(status)).Inc()
	}
	writeJSON(w, status, NotificationResponse{Success: status == http.StatusOK})
}

func (h *WebhookController) handle(r *http.Request, n notification) (status int) {
	logger := h.logger.With().Str("topic", n.topic).Str("action", n.action).Str("external_payment_id", n.id).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Notification handler panicked")
			status = http.StatusUnauthorized
		}
	}()

	if n.isTopic() {
		logger.Debug().Msg("Topic notification acknowledged")
		return http.StatusOK
	}
	if n.id == "" {
		logger.Warn().Msg("Notification without payment id")
		return http.StatusBadRequest
	}
	if n.id == testNotificationID {
		logger.Info().Msg("Test notification acknowledged")
		return http.StatusOK
	}

	var err error
	if n.action == actionPaymentCreated {
		_, err = h.reconciler.RecordCreated(r.Context(), n.id)
	} else {
		var res *service.ReconcileResult
		res, err = h.reconciler.Reconcile(r.Context(), service.ReconcileRequest{
			ExternalPaymentID: n.id,
			Source:            service.SourceWebhook,
		})
		if err == nil {
			logger.Info().Str("payment_id", res.Payment.ID.String()).Str("outcome", string(res.Outcome)).Msg("Notification processed")
		}
	}
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, domainErrors.ErrProviderUnavailable):
		logger.Error().Err(err).Msg("Processor unavailable while handling notification")
		return http.StatusInternalServerError
	case errors.Is(err, domainErrors.ErrInvalidInput):
		logger.Warn().Err(err).Msg("Invalid notification")
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		logger.Warn().Err(err).Msg("Notification for unknown payment")
	default:
		logger.Error().Err(err).Msg("Notification rejected")
	}
	return http.StatusUnauthorized
}

// parseNotification merges the JSON body with the query string. The query
// string wins because the processor's IPN format only uses it. A body that
// cannot be read or decoded is reported but the query string is still parsed.
func parseNotification(r *http.Request) (notification, error) {
	var body notificationBody
	var bodyErr error
	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		switch {
		case err != nil:
			bodyErr = fmt.Errorf("read notification body: %w", err)
		case len(bytes.TrimSpace(raw)) > 0:
			if err := json.Unmarshal(raw, &body); err != nil {
				body = notificationBody{}
				bodyErr = fmt.Errorf("decode notification body: %w", err)
			}
		}
	}

	n := notification{
		topic:  body.Topic,
		action: body.Action,
		id:     string(body.Data.ID),
	}
	if n.id == "" {
		n.id = string(body.ID)
	}

	q := r.URL.Query()
	if v := q.Get("topic"); v != "" {
		n.topic = v
	}
	if v := q.Get("action"); v != "" {
		n.action = v
	}
	if v := q.Get("data.id"); v != "" {
		n.id = v
	} else if v := q.Get("id"); v != "" {
		n.id = v
	}
	n.id = strings.TrimSpace(n.id)
	return n, bodyErr
}

