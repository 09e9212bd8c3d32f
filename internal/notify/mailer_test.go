package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

func TestSendPaymentLink(t *testing.T) {
	sender := &recordingSender{}
	m := NewPaymentLinkMailer(sender, logging.Discard())

	err := m.SendPaymentLink(context.Background(), PaymentLinkEmail{
		To:           "ana@example.com",
		GuestName:    "Ana Souza",
		HotelName:    "Casa Azul",
		Link:         "https://pay.example/HX42",
		Confirmation: "HX42",
		Language:     "pt-BR",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Conclua sua reserva HX42", msg.Subject)
	assert.Contains(t, msg.Body, "Olá Ana Souza,")
	assert.Contains(t, msg.Body, "https://pay.example/HX42")
	assert.Contains(t, msg.Body, "Casa Azul")
	assert.Equal(t, PaymentLinkCategory, msg.Category)
}

func TestSendPaymentLinkFallsBackToEnglish(t *testing.T) {
	sender := &recordingSender{}
	m := NewPaymentLinkMailer(sender, logging.Discard())

	require.NoError(t, m.SendPaymentLink(context.Background(), PaymentLinkEmail{To: "a@example.com", Link: "https://pay", Confirmation: "C1", Language: "ja"}))
	assert.Equal(t, "Complete your reservation C1", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, "Hello guest,")
}

func TestSendPaymentLinkErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	m := NewPaymentLinkMailer(sender, logging.Discard())
	ctx := context.Background()

	assert.Error(t, m.SendPaymentLink(ctx, PaymentLinkEmail{Link: "https://pay"}))
	assert.Error(t, m.SendPaymentLink(ctx, PaymentLinkEmail{To: "a@example.com"}))
	assert.Empty(t, sender.sent)

	err := m.SendPaymentLink(ctx, PaymentLinkEmail{To: "a@example.com", Link: "https://pay"})
	assert.ErrorContains(t, err, "smtp down")
}
