package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// PaymentLinkCategory tags payment link emails at the provider.
const PaymentLinkCategory = "payment_link"

// PaymentLinkEmail carries what a guest needs to pay for a new reservation.
type PaymentLinkEmail struct {
	To           string
	GuestName    string
	HotelName    string
	Link         string
	Confirmation string
	Language     string
}

type paymentCopy struct {
	subject  string
	greeting string
	body     string
	footer   string
}

var paymentCopies = map[string]paymentCopy{
	"en": {
		subject:  "Complete your reservation %s",
		greeting: "Hello %s,",
		body:     "Your reservation %s is almost ready. Please complete the payment here:",
		footer:   "We look forward to welcoming you.",
	},
	"es": {
		subject:  "Completa tu reserva %s",
		greeting: "Hola %s,",
		body:     "Tu reserva %s está casi lista. Completa el pago aquí:",
		footer:   "Te esperamos con gusto.",
	},
	"pt": {
		subject:  "Conclua sua reserva %s",
		greeting: "Olá %s,",
		body:     "Sua reserva %s está quase pronta. Conclua o pagamento aqui:",
		footer:   "Será um prazer recebê-lo.",
	},
}

// PaymentLinkMailer sends payment links for new reservations.
type PaymentLinkMailer struct {
	sender EmailSender
	logger *logging.Logger
}

func NewPaymentLinkMailer(sender EmailSender, logger *logging.Logger) *PaymentLinkMailer {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &PaymentLinkMailer{sender: sender, logger: logger}
}

// SendPaymentLink emails the link in the guest's language, falling back to English.
func (m *PaymentLinkMailer) SendPaymentLink(ctx context.Context, e PaymentLinkEmail) error {
	if strings.TrimSpace(e.To) == "" {
		return fmt.Errorf("notify: payment link: missing recipient")
	}
	if strings.TrimSpace(e.Link) == "" {
		return fmt.Errorf("notify: payment link: missing link")
	}

	lang := strings.ToLower(strings.TrimSpace(e.Language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	copyText, ok := paymentCopies[lang]
	if !ok {
		copyText = paymentCopies["en"]
	}

	name := strings.TrimSpace(e.GuestName)
	if name == "" {
		name = "guest"
	}
	lines := []string{
		fmt.Sprintf(copyText.greeting, name),
		"",
		fmt.Sprintf(copyText.body, e.Confirmation),
		e.Link,
		"",
		copyText.footer,
	}
	if e.HotelName != "" {
		lines = append(lines, e.HotelName)
	}

	msg := EmailMessage{
		To:       e.To,
		ToName:   e.GuestName,
		Subject:  fmt.Sprintf(copyText.subject, e.Confirmation),
		Body:     strings.Join(lines, "\n"),
		Category: PaymentLinkCategory,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: payment link: %w", err)
	}
	m.logger.Info("payment link emailed", "confirmation", e.Confirmation, "language", lang)
	return nil
}
