package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/audit"
	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/events"
	"github.com/wolfman30/leadcrm-booking/internal/leads"
	"github.com/wolfman30/leadcrm-booking/internal/observability/metrics"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

var tracer = otel.Tracer("leadcrm.internal.booking")

// SlotSource is the availability view the machine needs.
type SlotSource interface {
	Config(ctx context.Context, workspaceID string) (*scheduling.Config, error)
	BookingWindow(cfg *scheduling.Config) availability.Window
	FreshSlots(ctx context.Context, workspaceID string, window availability.Window) ([]availability.Slot, error)
	Check(ctx context.Context, workspaceID string, slot availability.Slot) (availability.Rejection, error)
	Now() time.Time
}

// Confirmer performs the atomic check-and-reserve.
type Confirmer interface {
	Confirm(ctx context.Context, req appointments.ConfirmRequest) (*appointments.ConfirmResult, error)
}

// LeadDirectory reads and updates lead contact details.
type LeadDirectory interface {
	GetByID(ctx context.Context, workspaceID, id string) (*leads.Lead, error)
	UpdateContact(ctx context.Context, workspaceID, id string, update leads.ContactUpdate) (*leads.Lead, error)
}

// AuditRecorder stores the transition trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type Option func(*Service)

func WithRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOfferLimit caps how many slots a payload lists. Zero lists all.
func WithOfferLimit(n int) Option {
	return func(s *Service) { s.offerLimit = n }
}

// Service drives negotiations. Every operation loads the negotiation,
// applies one or more machine events and saves it with the version it read.
type Service struct {
	store      Store
	slots      SlotSource
	confirmer  Confirmer
	leads      LeadDirectory
	publisher  events.Publisher
	recorder   AuditRecorder
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	offerLimit int
}

func NewService(store Store, slots SlotSource, confirmer Confirmer, leadDir LeadDirectory, publisher events.Publisher, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Service{
		store:      store,
		slots:      slots,
		confirmer:  confirmer,
		leads:      leadDir,
		publisher:  publisher,
		logger:     logger,
		offerLimit: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest opens a negotiation for a lead.
type StartRequest struct {
	WorkspaceID string              `json:"-"`
	LeadID      string              `json:"lead_id"`
	Source      appointments.Source `json:"source"`
}

// StartBooking creates a negotiation in offer mode.
func (s *Service) StartBooking(ctx context.Context, req StartRequest) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.start")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadcrm.workspace_id", req.WorkspaceID),
		attribute.String("leadcrm.lead_id", req.LeadID),
	)

	if strings.TrimSpace(req.WorkspaceID) == "" || strings.TrimSpace(req.LeadID) == "" {
		return nil, fmt.Errorf("%w: workspace_id and lead_id are required", ErrInvalidInput)
	}
	if req.Source == "" {
		req.Source = appointments.SourceChatbot
	}
	if !req.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, req.Source)
	}
	cfg, err := s.slots.Config(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := gate(cfg, req.Source); err != nil {
		return nil, err
	}

	now := s.slots.Now().UTC()
	n := &Negotiation{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		LeadID:      req.LeadID,
		Source:      req.Source,
		Mode:        ModeOffer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if s.leads != nil {
		lead, err := s.leads.GetByID(ctx, req.WorkspaceID, req.LeadID)
		if errors.Is(err, leads.ErrLeadNotFound) {
			return nil, ErrLeadNotFound
		}
		if err != nil {
			return nil, err
		}
		n.Identity = Identity{Name: strings.TrimSpace(lead.Name), Phone: strings.TrimSpace(lead.Phone)}
	}

	if err := s.store.Create(ctx, n); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.record(ctx, n, "start", "")
	s.logger.Info("booking negotiation started", "workspace_id", n.WorkspaceID, "negotiation_id", n.ID,
		"lead_id", n.LeadID, "source", n.Source)
	return n.payload(cfg.ChatbotBooking.PromptStyle), nil
}

// gate applies the workspace's chatbot booking mode to chatbot negotiations.
func gate(cfg *scheduling.Config, source appointments.Source) error {
	if source == appointments.SourceChatbot && cfg.ChatbotBooking.Mode == scheduling.BookingModeOff {
		return ErrBookingDisabled
	}
	return nil
}

// Get returns the current payload.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*Payload, error) {
	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	return n.payload(cfg.ChatbotBooking.PromptStyle), nil
}

// AcceptOffer moves offer to slots, or to awaiting_custom_time for
// workspaces that only take booking requests from the chatbot.
func (s *Service) AcceptOffer(ctx context.Context, workspaceID, id string) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.accept_offer")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.negotiation_id", id))

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := gate(cfg, n.Source); err != nil {
		return nil, err
	}
	tx := s.begin(n)

	if manualOnly(n, cfg) {
		if err := s.apply(n, EventAcceptManual); err != nil {
			return nil, err
		}
		n.OfferedSlots = nil
		return s.commit(ctx, n, cfg, tx, "accept_offer")
	}
	if err := s.reoffer(ctx, n, cfg, EventAccept, ""); err != nil {
		return nil, err
	}
	return s.commit(ctx, n, cfg, tx, "accept_offer")
}

// SelectSlot tentatively picks a slot. The slot must still be bookable
// right now; the lead is then asked for missing identity fields, or the
// appointment is confirmed.
func (s *Service) SelectSlot(ctx context.Context, workspaceID, id string, slot availability.Slot) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.select_slot")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.negotiation_id", id))

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if n.Mode == ModeConfirmed {
		return n.payload(cfg.ChatbotBooking.PromptStyle), nil
	}
	if manualOnly(n, cfg) {
		return nil, fmt.Errorf("%w: select_slot for a manual request", ErrInvalidTransition)
	}
	switch n.Mode {
	case ModeSlots, ModeAwaitingName, ModeAwaitingPhone:
	default:
		return nil, fmt.Errorf("%w: select_slot in %s", ErrInvalidTransition, n.Mode)
	}
	if slot.Start.IsZero() || !slot.End.After(slot.Start) {
		return nil, fmt.Errorf("%w: slot start and end are required and end must be after start", ErrInvalidInput)
	}
	tx := s.begin(n)

	fresh, err := s.slots.FreshSlots(ctx, n.WorkspaceID, s.slots.BookingWindow(cfg))
	if err != nil {
		return nil, err
	}
	if !availability.Contains(fresh, slot) && !s.heldByConflict(ctx, n.WorkspaceID, slot) {
		n.TentativeSlot = nil
		if err := s.offer(n, EventRefresh, ReasonSlotUnavailable, fresh); err != nil {
			return nil, err
		}
		return s.commit(ctx, n, cfg, tx, "select_slot")
	}

	chosen := availability.Slot{Start: slot.Start.UTC(), End: slot.End.UTC(), Timezone: cfg.Timezone}
	n.TentativeSlot = &chosen
	if err := s.advance(ctx, n, cfg); err != nil {
		return nil, err
	}
	return s.commit(ctx, n, cfg, tx, "select_slot")
}

// SupplyIdentityField records a name or phone number while the negotiation
// waits for one.
func (s *Service) SupplyIdentityField(ctx context.Context, workspaceID, id string, field scheduling.IdentityField, value string) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.supply_identity")
	defer span.End()
	span.SetAttributes(
		attribute.String("leadcrm.negotiation_id", id),
		attribute.String("leadcrm.field", string(field)),
	)

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if n.Mode == ModeConfirmed {
		return n.payload(cfg.ChatbotBooking.PromptStyle), nil
	}
	if n.Mode != ModeAwaitingName && n.Mode != ModeAwaitingPhone {
		return nil, fmt.Errorf("%w: supply_identity in %s", ErrInvalidTransition, n.Mode)
	}

	update := leads.ContactUpdate{}
	switch field {
	case scheduling.FieldName:
		name, err := normalizeName(value)
		if err != nil {
			return nil, err
		}
		n.Identity.Name, update.Name = name, name
	case scheduling.FieldPhone:
		phone, err := normalizePhone(value)
		if err != nil {
			return nil, err
		}
		n.Identity.Phone, update.Phone = phone, phone
	default:
		return nil, fmt.Errorf("%w: unknown identity field %q", ErrInvalidInput, field)
	}
	tx := s.begin(n)

	if s.leads != nil {
		if _, err := s.leads.UpdateContact(ctx, n.WorkspaceID, n.LeadID, update); err != nil {
			s.logger.Warn("failed to write identity back to lead", "workspace_id", n.WorkspaceID,
				"lead_id", n.LeadID, "field", field, "error", err)
		}
	}

	if n.TentativeSlot != nil {
		if err := s.advance(ctx, n, cfg); err != nil {
			return nil, err
		}
		return s.commit(ctx, n, cfg, tx, "supply_identity")
	}
	if missing := missingField(n, cfg); missing != "" {
		if err := s.await(n, missing); err != nil {
			return nil, err
		}
		return s.commit(ctx, n, cfg, tx, "supply_identity")
	}
	if err := s.reoffer(ctx, n, cfg, EventIdentityComplete, ""); err != nil {
		return nil, err
	}
	return s.commit(ctx, n, cfg, tx, "supply_identity")
}

// ProposeCustomTime validates a lead-proposed start time with the same
// rules as engine-offered slots, except stride alignment.
func (s *Service) ProposeCustomTime(ctx context.Context, workspaceID, id string, start time.Time) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.propose_custom_time")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.negotiation_id", id))

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if n.Mode == ModeConfirmed {
		return n.payload(cfg.ChatbotBooking.PromptStyle), nil
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: start_at is required", ErrInvalidInput)
	}
	tx := s.begin(n)

	switch n.Mode {
	case ModeSlots:
		if !cfg.ChatbotBooking.AllowCustomTime {
			return nil, ErrCustomTimeDisabled
		}
		if err := s.apply(n, EventProposeCustom); err != nil {
			return nil, err
		}
	case ModeAwaitingCustomTime:
	default:
		return nil, fmt.Errorf("%w: propose_custom_time in %s", ErrInvalidTransition, n.Mode)
	}

	slot := availability.Slot{Start: start.UTC(), End: start.UTC().Add(cfg.SlotDuration()), Timezone: cfg.Timezone}
	rejection, err := s.slots.Check(ctx, n.WorkspaceID, slot)
	if err != nil {
		return nil, err
	}
	if rejection != availability.RejectionNone {
		n.TentativeSlot = nil
		if err := s.reoffer(ctx, n, cfg, EventCustomRejected, string(rejection)); err != nil {
			return nil, err
		}
		return s.commit(ctx, n, cfg, tx, "propose_custom_time")
	}

	n.TentativeSlot = &slot
	if err := s.advance(ctx, n, cfg); err != nil {
		return nil, err
	}
	return s.commit(ctx, n, cfg, tx, "propose_custom_time")
}

// Decline ends the negotiation. Declining twice returns the declined payload.
func (s *Service) Decline(ctx context.Context, workspaceID, id string) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.decline")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.negotiation_id", id))

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if n.Mode == ModeDeclined {
		return n.payload(cfg.ChatbotBooking.PromptStyle), nil
	}
	tx := s.begin(n)
	if err := s.apply(n, EventDecline); err != nil {
		return nil, err
	}
	n.TentativeSlot = nil
	n.Reason = ""
	payload, err := s.commit(ctx, n, cfg, tx, "decline")
	if err != nil {
		return nil, err
	}
	// A concurrent confirmation wins the commit; nothing was declined.
	if payload.Mode != ModeDeclined {
		return payload, nil
	}
	if err := s.publisher.Publish(ctx, n.WorkspaceID, events.TypeBookingDeclined, events.BookingDeclinedEvent{
		NegotiationID: n.ID,
		WorkspaceID:   n.WorkspaceID,
		LeadID:        n.LeadID,
		FromMode:      string(tx.from),
		DeclinedAt:    n.UpdatedAt,
	}); err != nil {
		s.logger.Error("failed to publish booking declined", "negotiation_id", n.ID, "error", err)
	}
	return payload, nil
}

// Restart reopens a not_available negotiation at offer.
func (s *Service) Restart(ctx context.Context, workspaceID, id string) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "booking.restart")
	defer span.End()
	span.SetAttributes(attribute.String("leadcrm.negotiation_id", id))

	n, cfg, err := s.load(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := gate(cfg, n.Source); err != nil {
		return nil, err
	}
	tx := s.begin(n)
	if err := s.apply(n, EventRestart); err != nil {
		return nil, err
	}
	n.OfferedSlots = nil
	n.TentativeSlot = nil
	n.Reason = ""
	return s.commit(ctx, n, cfg, tx, "restart")
}

// heldByConflict reports whether a slot is missing from the fresh list only
// because something is booked on it. Confirm then decides: the booking may be
// this negotiation's own, otherwise it reports the slot as taken.
func (s *Service) heldByConflict(ctx context.Context, workspaceID string, slot availability.Slot) bool {
	rejection, err := s.slots.Check(ctx, workspaceID, slot)
	return err == nil && rejection == availability.RejectConflict
}

func (s *Service) load(ctx context.Context, workspaceID, id string) (*Negotiation, *scheduling.Config, error) {
	n, err := s.store.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.slots.Config(ctx, workspaceID)
	if err != nil {
		return nil, nil, err
	}
	return n, cfg, nil
}

// txn remembers what an operation started from.
type txn struct {
	from    Mode
	version int64
}

func (s *Service) begin(n *Negotiation) txn {
	return txn{from: n.Mode, version: n.Version}
}

func (s *Service) apply(n *Negotiation, e Event) error {
	to, err := next(n.Mode, e)
	if err != nil {
		return err
	}
	s.metrics.ObserveTransition(string(n.Mode), string(to))
	n.Mode = to
	return nil
}

// reoffer applies e (which lands in slots), lists fresh slots and falls
// through to not_available when there are none. Manual requests never see a
// slot list; they go back to awaiting_custom_time with the reason instead.
func (s *Service) reoffer(ctx context.Context, n *Negotiation, cfg *scheduling.Config, e Event, reason string) error {
	if manualOnly(n, cfg) {
		if err := s.apply(n, EventRetryCustom); err != nil {
			return err
		}
		n.OfferedSlots = nil
		n.Reason = reason
		return nil
	}
	fresh, err := s.slots.FreshSlots(ctx, n.WorkspaceID, s.slots.BookingWindow(cfg))
	if err != nil {
		return err
	}
	return s.offer(n, e, reason, fresh)
}

func manualOnly(n *Negotiation, cfg *scheduling.Config) bool {
	return n.Source == appointments.SourceChatbot && cfg.ChatbotBooking.Mode == scheduling.BookingModeManualRequest
}

func (s *Service) offer(n *Negotiation, e Event, reason string, fresh []availability.Slot) error {
	if err := s.apply(n, e); err != nil {
		return err
	}
	n.Reason = reason
	if len(fresh) == 0 {
		n.OfferedSlots = nil
		return s.apply(n, EventNoAvailability)
	}
	if s.offerLimit > 0 && len(fresh) > s.offerLimit {
		fresh = fresh[:s.offerLimit]
	}
	n.OfferedSlots = fresh
	return nil
}

// advance runs once a tentative slot is set: ask for the next missing
// identity field, otherwise confirm.
func (s *Service) advance(ctx context.Context, n *Negotiation, cfg *scheduling.Config) error {
	s.mergeLead(ctx, n)
	if missing := missingField(n, cfg); missing != "" {
		return s.await(n, missing)
	}
	return s.confirm(ctx, n, cfg)
}

func (s *Service) await(n *Negotiation, field scheduling.IdentityField) error {
	n.Reason = ""
	target, event := ModeAwaitingName, EventNeedName
	if field == scheduling.FieldPhone {
		target, event = ModeAwaitingPhone, EventNeedPhone
	}
	if n.Mode == target {
		return nil
	}
	return s.apply(n, event)
}

// mergeLead fills identity gaps from the lead record, which other channels
// may have updated since the negotiation started.
func (s *Service) mergeLead(ctx context.Context, n *Negotiation) {
	if s.leads == nil || (n.Identity.Name != "" && n.Identity.Phone != "") {
		return
	}
	lead, err := s.leads.GetByID(ctx, n.WorkspaceID, n.LeadID)
	if err != nil {
		s.logger.Warn("failed to load lead for identity merge", "lead_id", n.LeadID, "error", err)
		return
	}
	if n.Identity.Name == "" {
		n.Identity.Name = strings.TrimSpace(lead.Name)
	}
	if n.Identity.Phone == "" {
		n.Identity.Phone = strings.TrimSpace(lead.Phone)
	}
}

func missingField(n *Negotiation, cfg *scheduling.Config) scheduling.IdentityField {
	for _, field := range cfg.RequiredFieldsInOrder() {
		if n.Identity.value(field) == "" {
			return field
		}
	}
	return ""
}

// confirm books the tentative slot. A lost race or a slot that stopped being
// valid puts the negotiation back on a refreshed slot list.
func (s *Service) confirm(ctx context.Context, n *Negotiation, cfg *scheduling.Config) error {
	slot := *n.TentativeSlot
	title := ""
	if n.Identity.Name != "" {
		title = "Appointment with " + n.Identity.Name
	}
	res, err := s.confirmer.Confirm(ctx, appointments.ConfirmRequest{
		WorkspaceID:    n.WorkspaceID,
		LeadID:         n.LeadID,
		Slot:           slot,
		Title:          title,
		Source:         n.Source,
		IdempotencyKey: n.ID,
	})
	var rejected *appointments.SlotRejectedError
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		n.TentativeSlot = nil
		s.logger.Info("booking slot taken at confirmation", "negotiation_id", n.ID, "start", slot.Start)
		return s.reoffer(ctx, n, cfg, EventSlotTaken, ReasonSlotTaken)
	case errors.As(err, &rejected):
		n.TentativeSlot = nil
		event := EventRefresh
		if n.Mode == ModeAwaitingCustomTime {
			event = EventCustomRejected
		}
		return s.reoffer(ctx, n, cfg, event, string(rejected.Reason))
	case err != nil:
		return err
	}

	if err := s.apply(n, EventConfirm); err != nil {
		return err
	}
	n.Appointment = res.Appointment
	n.TentativeSlot = nil
	n.OfferedSlots = nil
	n.Reason = ""
	return nil
}

// commit saves with the version read at the start of the operation. When
// another request won and already confirmed, its payload is returned. A
// confirmation that loses to a non-terminal write is reapplied on top of it,
// since the appointment row already exists.
func (s *Service) commit(ctx context.Context, n *Negotiation, cfg *scheduling.Config, tx txn, event string) (*Payload, error) {
	n.UpdatedAt = s.slots.Now().UTC()
	expected := tx.version
	for attempt := 0; ; attempt++ {
		err := s.store.Save(ctx, n, expected)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		latest, getErr := s.store.Get(ctx, n.WorkspaceID, n.ID)
		if getErr != nil {
			return nil, err
		}
		if latest.Mode == ModeConfirmed {
			return latest.payload(cfg.ChatbotBooking.PromptStyle), nil
		}
		if n.Mode != ModeConfirmed || latest.Mode.Terminal() || attempt >= 3 {
			return nil, err
		}
		n.OfferedSlots, n.Identity = nil, mergeIdentity(n.Identity, latest.Identity)
		tx.from = latest.Mode
		expected = latest.Version
	}
	s.record(ctx, n, event, tx.from)
	s.logger.Info("booking negotiation advanced", "workspace_id", n.WorkspaceID, "negotiation_id", n.ID,
		"event", event, "from", tx.from, "to", n.Mode, "reason", n.Reason)
	return n.payload(cfg.ChatbotBooking.PromptStyle), nil
}

func mergeIdentity(ours, theirs Identity) Identity {
	if ours.Name == "" {
		ours.Name = theirs.Name
	}
	if ours.Phone == "" {
		ours.Phone = theirs.Phone
	}
	return ours
}

func (s *Service) record(ctx context.Context, n *Negotiation, event string, from Mode) {
	if s.recorder == nil {
		return
	}
	entry := audit.Entry{
		WorkspaceID:   n.WorkspaceID,
		NegotiationID: n.ID,
		LeadID:        n.LeadID,
		Event:         event,
		FromMode:      string(from),
		ToMode:        string(n.Mode),
		Reason:        n.Reason,
		CreatedAt:     n.UpdatedAt,
	}
	if n.Appointment != nil {
		entry.AppointmentID = n.Appointment.ID
	}
	for _, slot := range n.OfferedSlots {
		entry.OfferedSlots = append(entry.OfferedSlots, slot.Start)
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record booking audit entry", "negotiation_id", n.ID, "error", err)
	}
}

func normalizeName(value string) (string, error) {
	name := strings.Join(strings.Fields(value), " ")
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if len(name) > 200 {
		return "", fmt.Errorf("%w: name is too long", ErrInvalidInput)
	}
	return name, nil
}

// normalizePhone keeps digits and a leading plus; 7 to 15 digits.
func normalizePhone(value string) (string, error) {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for i, r := range value {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: phone contains %q", ErrInvalidInput, r)
		}
	}
	phone := b.String()
	digits := len(strings.TrimPrefix(phone, "+"))
	if digits < 7 || digits > 15 {
		return "", fmt.Errorf("%w: phone must have 7 to 15 digits", ErrInvalidInput)
	}
	return phone, nil
}
