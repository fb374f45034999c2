package controller

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Flash messages shown after a checkout round trip. The English text is the key.
const (
	msgPaymentSuccessful  = "Payment successful"
	msgPaymentCancelledBy = "You cancelled the payment"
	msgPaymentProcessing  = "Your payment is being processed"
	msgPaymentUnknown     = "Your payment is unknown"
	msgPaymentCancelled   = "Payment cancelled"
	msgPaymentFailed      = "Payment failed"
	msgProductUnavailable = "This product is not available"
	msgPaymentsDisabled   = "Payments are not available right now"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
	language.Spanish,
	language.German,
}

var translations = map[language.Tag]map[string]string{
	language.BrazilianPortuguese: {
		msgPaymentSuccessful:  "Pagamento realizado com sucesso",
		msgPaymentCancelledBy: "Você cancelou o pagamento",
		msgPaymentProcessing:  "Seu pagamento está sendo processado",
		msgPaymentUnknown:     "Seu pagamento é desconhecido",
		msgPaymentCancelled:   "Pagamento cancelado",
		msgPaymentFailed:      "O pagamento falhou",
		msgProductUnavailable: "Este produto não está disponível",
		msgPaymentsDisabled:   "Pagamentos indisponíveis no momento",
	},
	language.Spanish: {
		msgPaymentSuccessful:  "Pago realizado con éxito",
		msgPaymentCancelledBy: "Has cancelado el pago",
		msgPaymentProcessing:  "Tu pago se está procesando",
		msgPaymentUnknown:     "Tu pago es desconocido",
		msgPaymentCancelled:   "Pago cancelado",
		msgPaymentFailed:      "El pago ha fallado",
		msgProductUnavailable: "Este producto no está disponible",
		msgPaymentsDisabled:   "Los pagos no están disponibles en este momento",
	},
	language.German: {
		msgPaymentSuccessful:  "Zahlung erfolgreich",
		msgPaymentCancelledBy: "Sie haben die Zahlung abgebrochen",
		msgPaymentProcessing:  "Ihre Zahlung wird bearbeitet",
		msgPaymentUnknown:     "Ihre Zahlung ist unbekannt",
		msgPaymentCancelled:   "Zahlung abgebrochen",
		msgPaymentFailed:      "Zahlung fehlgeschlagen",
		msgProductUnavailable: "Dieses Produkt ist nicht verfügbar",
		msgPaymentsDisabled:   "Zahlungen sind derzeit nicht verfügbar",
	},
}

var (
	messages = newCatalog()
	matcher  = language.NewMatcher(supportedLanguages)
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, strs := range translations {
		for key, msg := range strs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// localizer picks the best supported language from Accept-Language.
func localizer(r *http.Request) *message.Printer {
	tag := language.English
	if prefs, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(prefs) > 0 {
		_, idx, conf := matcher.Match(prefs...)
		if conf != language.No {
			tag = supportedLanguages[idx]
		}
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}

func translate(r *http.Request, key string) string {
	return localizer(r).Sprintf(message.Key(key, key))
}
