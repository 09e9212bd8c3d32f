package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/hotel-concierge-platform/internal/llm"
	"github.com/wolfman30/hotel-concierge-platform/internal/notify"
	"github.com/wolfman30/hotel-concierge-platform/internal/pricing"
	"github.com/wolfman30/hotel-concierge-platform/internal/reservations"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

const (
	defaultEmailWait  = 1500 * time.Millisecond
	emailSendTimeout  = 30 * time.Second
	emailStatusSent   = "sent"
	emailStatusPend   = "pending"
	emailStatusSkip   = "skipped"
	emailStatusFailed = "failed"
)

// Pricer quotes stays.
type Pricer interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error)
}

// ReservationAPI is the reservation system the tools act on.
type ReservationAPI interface {
	Create(ctx context.Context, req reservations.CreateRequest) (*reservations.CreateResult, error)
	Update(ctx context.Context, id string, patch map[string]any) (*reservations.Reservation, error)
	Lookup(ctx context.Context, code string) (*reservations.Reservation, error)
}

// PaymentMailer delivers payment links.
type PaymentMailer interface {
	SendPaymentLink(ctx context.Context, e notify.PaymentLinkEmail) error
}

// CallContext is what the caller knows about the conversation when tools run.
// The confirmation flags gate side effects the model cannot grant itself.
type CallContext struct {
	SessionID        string
	HotelID          string
	Language         string
	GuestName        string
	GuestEmail       string
	ConfirmedProceed bool
	ConfirmedCancel  bool
}

// Invocation records one executed tool call.
type Invocation struct {
	CallID string         `json:"call_id"`
	Tool   string         `json:"tool"`
	Result map[string]any `json:"result"`
	// Completed is true only when the call's side effect actually happened.
	Completed bool `json:"completed"`
}

// OK reports whether the tool result was successful.
func (i Invocation) OK() bool {
	ok, _ := i.Result["ok"].(bool)
	return ok
}

// Content is the JSON text sent back to the model.
func (i Invocation) Content() string {
	raw, err := json.Marshal(i.Result)
	if err != nil {
		return `{"ok":false,"error":"unencodable result"}`
	}
	return string(raw)
}

// Dispatcher executes tool calls. It never returns an error: every failure
// becomes an {"ok": false} result the model can read.
type Dispatcher struct {
	pricer       Pricer
	reservations ReservationAPI
	mailer       PaymentMailer
	emailWait    time.Duration
	logger       *logging.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithEmailWait bounds how long create_reservation waits for the payment email.
func WithEmailWait(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d >= 0 {
			dp.emailWait = d
		}
	}
}

func NewDispatcher(pricer Pricer, api ReservationAPI, mailer PaymentMailer, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		pricer:       pricer,
		reservations: api,
		mailer:       mailer,
		emailWait:    defaultEmailWait,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one tool call by name.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall, cc CallContext) Invocation {
	inv := Invocation{CallID: call.ID, Tool: call.Name}
	switch call.Name {
	case ToolGetPricing:
		inv.Result = d.getPricing(ctx, call.Arguments, cc)
	case ToolCreateReservation:
		inv.Result, inv.Completed = d.createReservation(ctx, call.Arguments, cc)
	case ToolFindReservation:
		inv.Result = d.findReservation(ctx, call.Arguments)
	case ToolUpdateReservation:
		inv.Result, inv.Completed = d.updateReservation(ctx, call.Arguments, cc)
	default:
		inv.Result = failure("unknown tool")
	}
	d.logger.Debug("assistant: tool dispatched", "session_id", cc.SessionID, "tool", call.Name, "ok", inv.OK(), "completed", inv.Completed)
	return inv
}

func (d *Dispatcher) getPricing(ctx context.Context, raw string, cc CallContext) map[string]any {
	var args pricingArgs
	decodeArgs(raw, &args)
	if d.pricer == nil {
		return failure("pricing unavailable")
	}
	req, errResult := quoteRequest(args.Hotel, args.CheckIn, args.CheckOut, args.Rooms, cc)
	if errResult != nil {
		return errResult
	}
	quote, err := d.pricer.Quote(ctx, req)
	if err != nil {
		return failure(pricingError(err))
	}
	return map[string]any{"ok": true, "quote": quote}
}

func (d *Dispatcher) createReservation(ctx context.Context, raw string, cc CallContext) (map[string]any, bool) {
	var args createArgs
	decodeArgs(raw, &args)

	if !cc.ConfirmedProceed {
		return map[string]any{"ok": false, "needs_confirmation": true}, false
	}
	name := strings.TrimSpace(args.GuestName)
	if name == "" {
		name = strings.TrimSpace(cc.GuestName)
	}
	if !reservations.HasFullName(name) {
		return map[string]any{"ok": false, "needs_full_name": true}, false
	}
	if d.pricer == nil || d.reservations == nil {
		return failure("reservations unavailable"), false
	}

	req, errResult := quoteRequest(args.Hotel, args.CheckIn, args.CheckOut, args.Rooms, cc)
	if errResult != nil {
		return errResult, false
	}
	quote, err := d.pricer.Quote(ctx, req)
	if err != nil {
		return failure(pricingError(err)), false
	}
	if quote.Blocked {
		res := failure("dates unavailable")
		res["blocked_dates"] = quote.BlockedDates
		if quote.Alternative != nil {
			res["alternative"] = quote.Alternative
		}
		return res, false
	}

	groups := make([]reservations.RoomGroup, 0, len(quote.Rooms))
	for i, rq := range quote.Rooms {
		rates := make([]float64, 0, len(rq.Nights))
		for _, n := range rq.Nights {
			rates = append(rates, n.Price)
		}
		guests := 0
		if i < len(req.Rooms) {
			guests = req.Rooms[i].Guests
		}
		groups = append(groups, reservations.RoomGroup{RoomType: rq.RoomType, Quantity: rq.Quantity, Guests: guests, NightlyRates: rates})
	}
	rooms := reservations.FlattenRooms(groups)
	charges := reservations.ComputeCharges(rooms, quote.CommissionRate)

	email := strings.TrimSpace(args.GuestEmail)
	if email == "" {
		email = strings.TrimSpace(cc.GuestEmail)
	}
	created, err := d.reservations.Create(ctx, reservations.CreateRequest{
		HotelID:     quote.HotelID,
		SessionID:   cc.SessionID,
		GuestName:   name,
		GuestEmail:  email,
		GuestPhone:  strings.TrimSpace(args.GuestPhone),
		CheckIn:     quote.CheckIn,
		CheckOut:    quote.CheckOut,
		Rooms:       rooms,
		Currency:    quote.Currency,
		Total:       charges.Total,
		Commission:  charges.Commission,
		OperatorNet: charges.OperatorNet,
		Deposit:     charges.Deposit,
		Notes:       strings.TrimSpace(args.Notes),
	})
	if err != nil {
		d.logger.Warn("assistant: create reservation failed", "session_id", cc.SessionID, "error", err)
		return failure(apiErrorMessage(err)), false
	}

	res := map[string]any{
		"ok":                true,
		"reservation_id":    created.ReservationID,
		"confirmation_code": created.Confirmation,
		"status":            created.Status,
		"hotel":             quote.HotelName,
		"check_in":          quote.CheckIn,
		"check_out":         quote.CheckOut,
		"rooms":             len(rooms),
		"total":             charges.Total,
		"deposit":           charges.Deposit,
		"currency":          quote.Currency,
	}
	if created.PaymentLink != "" {
		res["payment_link"] = created.PaymentLink
	}
	res["email"] = d.sendPaymentLink(ctx, created, quote, name, email, cc)
	return res, true
}

// sendPaymentLink mails the link in the background and waits briefly for the
// outcome. Email failure never fails the reservation.
func (d *Dispatcher) sendPaymentLink(ctx context.Context, created *reservations.CreateResult, quote *pricing.Quote, name, email string, cc CallContext) string {
	if created.PaymentLink == "" || email == "" || d.mailer == nil {
		return emailStatusSkip
	}

	msg := notify.PaymentLinkEmail{
		To:           email,
		GuestName:    name,
		HotelName:    quote.HotelName,
		Link:         created.PaymentLink,
		Confirmation: created.Confirmation,
		Language:     cc.Language,
	}
	done := make(chan error, 1)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailSendTimeout)
		defer cancel()
		err := d.mailer.SendPaymentLink(sendCtx, msg)
		if err != nil {
			d.logger.Warn("assistant: payment link email failed", "session_id", cc.SessionID, "confirmation", created.Confirmation, "error", err)
		}
		done <- err
	}()

	timer := time.NewTimer(d.emailWait)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return emailStatusFailed + ": " + err.Error()
		}
		return emailStatusSent
	case <-timer.C:
		return emailStatusPend
	case <-ctx.Done():
		return emailStatusPend
	}
}

func (d *Dispatcher) findReservation(ctx context.Context, raw string) map[string]any {
	var args findArgs
	decodeArgs(raw, &args)
	if d.reservations == nil {
		return failure("reservations unavailable")
	}
	if strings.TrimSpace(args.ConfirmationCode) == "" {
		return failure("confirmation_code is required")
	}
	res, err := d.reservations.Lookup(ctx, args.ConfirmationCode)
	if err != nil {
		if errors.Is(err, reservations.ErrNotFound) {
			return failure("reservation not found")
		}
		return failure(apiErrorMessage(err))
	}
	return map[string]any{"ok": true, "reservation": reservations.NormalizeLookup(res)}
}

func (d *Dispatcher) updateReservation(ctx context.Context, raw string, cc CallContext) (map[string]any, bool) {
	fields := map[string]any{}
	decodeArgs(raw, &fields)

	id := stringField(fields, "reservation_id")
	code := stringField(fields, "confirmation_code")
	delete(fields, "reservation_id")
	delete(fields, "confirmation_code")

	if status := stringField(fields, "status"); reservations.IsCancelStatus(status) && !cc.ConfirmedCancel {
		return map[string]any{"ok": false, "needs_cancel_confirmation": true}, false
	}
	checkIn, checkOut := stringField(fields, "check_in"), stringField(fields, "check_out")
	if checkIn != "" && checkOut != "" {
		in, errIn := parseDate(checkIn)
		out, errOut := parseDate(checkOut)
		if errIn != nil || errOut != nil {
			return failure("dates must be YYYY-MM-DD"), false
		}
		if !out.After(in) {
			return failure("check_out must be after check_in"), false
		}
	}
	if len(fields) == 0 {
		return failure("nothing to update"), false
	}
	if d.reservations == nil {
		return failure("reservations unavailable"), false
	}

	if id == "" {
		if code == "" {
			return failure("reservation_id or confirmation_code is required"), false
		}
		found, err := d.reservations.Lookup(ctx, code)
		if err != nil {
			if errors.Is(err, reservations.ErrNotFound) {
				return failure("reservation not found"), false
			}
			return failure(apiErrorMessage(err)), false
		}
		id = found.ID
	}

	updated, err := d.reservations.Update(ctx, id, fields)
	if err != nil {
		d.logger.Warn("assistant: update reservation failed", "session_id", cc.SessionID, "reservation_id", id, "error", err)
		return failure(apiErrorMessage(err)), false
	}
	return map[string]any{"ok": true, "reservation": reservations.NormalizeLookup(updated)}, true
}

func quoteRequest(hotel, checkIn, checkOut string, rooms []roomArg, cc CallContext) (pricing.QuoteRequest, map[string]any) {
	hotel = strings.TrimSpace(hotel)
	if hotel == "" {
		hotel = cc.HotelID
	}
	in, err := parseDate(checkIn)
	if err != nil {
		return pricing.QuoteRequest{}, failure("check_in must be YYYY-MM-DD")
	}
	out, err := parseDate(checkOut)
	if err != nil {
		return pricing.QuoteRequest{}, failure("check_out must be YYYY-MM-DD")
	}
	if !out.After(in) {
		return pricing.QuoteRequest{}, failure("check_out must be after check_in")
	}
	req := pricing.QuoteRequest{Hotel: hotel, CheckIn: in, CheckOut: out}
	for _, r := range rooms {
		req.Rooms = append(req.Rooms, pricing.RoomRequest{RoomType: r.RoomType, Quantity: r.Quantity, Guests: r.Guests})
	}
	return req, nil
}

// decodeArgs fills v from raw JSON; malformed input leaves v as an empty object.
func decodeArgs(raw string, v any) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		switch t := v.(type) {
		case *map[string]any:
			*t = map[string]any{}
		case *pricingArgs:
			*t = pricingArgs{}
		case *createArgs:
			*t = createArgs{}
		case *findArgs:
			*t = findArgs{}
		}
	}
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, strings.TrimSpace(s))
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func pricingError(err error) string {
	switch {
	case errors.Is(err, pricing.ErrHotelNotFound):
		return "hotel not found"
	case errors.Is(err, pricing.ErrInvalidDates):
		return "check_out must be after check_in"
	default:
		return "pricing lookup failed"
	}
}

func apiErrorMessage(err error) string {
	var apiErr *reservations.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "reservation service unavailable"
}
