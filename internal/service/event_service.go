package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/together-culture-crm/internal/email"
	"github.com/Marga-Ghale/together-culture-crm/internal/entitlement"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Event Service
// ============================================

type EventInput struct {
	Title                   string
	Description             *string
	EventType               string
	StartDate               time.Time
	EndDate                 time.Time
	Location                *string
	Capacity                int
	Cost                    string
	RegistrationOpens       *time.Time
	RegistrationCloses      *time.Time
	EligibleMembershipTypes string
	IsActive                *bool
	IsPublic                bool
}

type EventQuery struct {
	EventType string
	Upcoming  bool
}

type GuestInput struct {
	Email       string
	FullName    string
	PhoneNumber string
}

// EventDetail is an event as one user sees it.
type EventDetail struct {
	Event            *repository.Event
	IsFull           bool
	RegistrationOpen bool
	Attendance       *repository.Attendance
	CanRegister      bool
	Reason           entitlement.Reason
}

func (d *EventDetail) IsRegistered() bool { return d.Attendance != nil }

type EventService interface {
	Create(ctx context.Context, actor *repository.User, in EventInput) (*repository.Event, error)
	Update(ctx context.Context, actor *repository.User, id string, in EventInput) (*repository.Event, error)
	Delete(ctx context.Context, actor *repository.User, id string) error
	List(ctx context.Context, actor *repository.User, q EventQuery) ([]*EventDetail, error)
	Get(ctx context.Context, actor *repository.User, id string) (*EventDetail, error)

	Register(ctx context.Context, actor *repository.User, eventID string) (*repository.Attendance, error)
	Cancel(ctx context.Context, actor *repository.User, eventID string) error
	GuestRegister(ctx context.Context, eventID string, in GuestInput) (*repository.Attendance, error)
	MyEvents(ctx context.Context, actor *repository.User) ([]*repository.Attendance, error)

	Attendees(ctx context.Context, actor *repository.User, eventID string) ([]*repository.Attendance, error)
	CheckIn(ctx context.Context, actor *repository.User, attendanceID string) (*repository.Attendance, error)
	MarkAttended(ctx context.Context, actor *repository.User, attendanceID string) (*repository.Attendance, error)
	BulkCheckIn(ctx context.Context, actor *repository.User, eventID string, userIDs []string) (int, error)

	// SendReminders notifies attendees of events starting between 23 and
	// 24 hours after now. Run hourly, each event is reminded once.
	SendReminders(ctx context.Context) (int, error)
}

type eventService struct {
	eventRepo   repository.EventRepository
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	membership  MembershipService
	checker     *entitlement.Checker
	notifSvc    *notification.Service
	mailer      Mailer
	broadcaster *socket.Broadcaster
	now         func() time.Time
	tickets     func() string
}

func NewEventService(
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	membership MembershipService,
	checker *entitlement.Checker,
	notifSvc *notification.Service,
	mailer Mailer,
	broadcaster *socket.Broadcaster,
	now func() time.Time,
) EventService {
	return &eventService{
		eventRepo:   eventRepo,
		userRepo:    userRepo,
		profileRepo: profileRepo,
		membership:  membership,
		checker:     checker,
		notifSvc:    notifSvc,
		mailer:      mailer,
		broadcaster: broadcaster,
		now:         now,
		tickets:     NewTicketNumber,
	}
}

// Generated ticket numbers are retried this many times on a collision.
const ticketAttempts = 3

// NewTicketNumber returns a human-readable ticket code such as TC-3F9A1C22B0.
func NewTicketNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TC-" + strings.ToUpper(raw[:10])
}

// ============================================
// Admin CRUD
// ============================================

func (s *eventService) build(in EventInput, ev *repository.Event) error {
	f := fieldErrors{}
	if len(strings.TrimSpace(in.Title)) < 3 {
		f.add("title", "Title must be at least 3 characters long.")
	}
	eventType := strings.ToLower(strings.TrimSpace(in.EventType))
	if eventType == "" {
		eventType = types.EventOther
	}
	if !types.IsValidEventType(eventType) {
		f.add("event_type", "Choose one of: "+strings.Join(types.ValidEventTypes, ", ")+".")
	}
	if in.StartDate.IsZero() {
		f.add("start_date", "Start date is required.")
	}
	if in.EndDate.IsZero() || !in.EndDate.After(in.StartDate) {
		f.add("end_date", "End date must be after start date.")
	}
	if in.RegistrationOpens != nil && in.RegistrationCloses != nil && !in.RegistrationCloses.After(*in.RegistrationOpens) {
		f.add("registration_closes", "Registration must close after it opens.")
	}
	if in.RegistrationCloses != nil && !in.EndDate.IsZero() && in.RegistrationCloses.After(in.EndDate) {
		f.add("registration_closes", "Registration must close before the event ends.")
	}
	if in.Capacity < 0 {
		f.add("capacity", "Capacity cannot be negative.")
	}

	cost := decimal.Zero
	if strings.TrimSpace(in.Cost) != "" {
		c, err := decimal.NewFromString(strings.TrimSpace(in.Cost))
		if err != nil || c.IsNegative() {
			f.add("cost", "Cost must be a non-negative amount.")
		} else {
			cost = c.Round(2)
		}
	}

	eligible, unknown := types.ParseMembershipTypeList(in.EligibleMembershipTypes)
	if len(unknown) > 0 {
		f.add("eligible_membership_types", "Unknown membership types: "+strings.Join(unknown, ", "))
	}
	if err := f.err(); err != nil {
		return err
	}

	ev.Title = strings.TrimSpace(in.Title)
	ev.Description = in.Description
	ev.EventType = eventType
	ev.StartDate = in.StartDate
	ev.EndDate = in.EndDate
	ev.Location = in.Location
	ev.Capacity = in.Capacity
	ev.Cost = cost
	ev.RegistrationOpens = in.RegistrationOpens
	ev.RegistrationCloses = in.RegistrationCloses
	ev.EligibleMembershipTypes = types.JoinMembershipTypes(eligible)
	if in.IsActive != nil {
		ev.IsActive = *in.IsActive
	}
	ev.IsPublic = in.IsPublic
	return nil
}

func (s *eventService) Create(ctx context.Context, actor *repository.User, in EventInput) (*repository.Event, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	ev := &repository.Event{IsActive: true, CreatedBy: actor.ID}
	if err := s.build(in, ev); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Create(ctx, ev); err != nil {
		return nil, err
	}
	log.Printf("[Event] %s created %s (%s)", actor.ID, ev.ID, ev.Title)
	return ev, nil
}

func (s *eventService) Update(ctx context.Context, actor *repository.User, id string, in EventInput) (*repository.Event, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	ev, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.build(in, ev); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *eventService) Delete(ctx context.Context, actor *repository.User, id string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.eventRepo.Delete(ctx, id)
}

func (s *eventService) find(ctx context.Context, id string) (*repository.Event, error) {
	ev, err := s.eventRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, notFoundError("event_not_found", "Event not found.")
	}
	return ev, nil
}

// ============================================
// Reads
// ============================================

func eligibilityView(ev *repository.Event, registered int) entitlement.Event {
	return entitlement.Event{
		Active:             ev.IsActive,
		Public:             ev.IsPublic,
		StartsAt:           ev.StartDate,
		RegistrationOpens:  ev.RegistrationOpens,
		RegistrationCloses: ev.RegistrationCloses,
		Capacity:           ev.Capacity,
		Registered:         registered,
		EligibleTypes:      ev.EligibleMembershipTypes,
	}
}

func (s *eventService) describe(ev *repository.Event, actor *repository.User, tier *types.MembershipType, att *repository.Attendance, now time.Time) *EventDetail {
	view := eligibilityView(ev, ev.RegisteredCount)
	d := s.checker.CanRegister(view, entitlement.Registrant{
		Staff:             actor.IsAdmin(),
		AlreadyRegistered: att != nil,
		Membership:        tier,
	}, now)
	return &EventDetail{
		Event:            ev,
		IsFull:           view.Full(),
		RegistrationOpen: ev.IsActive && view.RegistrationWindow(now) == entitlement.ReasonNone,
		Attendance:       att,
		CanRegister:      d.Allowed,
		Reason:           d.Reason,
	}
}

func (s *eventService) List(ctx context.Context, actor *repository.User, q EventQuery) ([]*EventDetail, error) {
	now := s.now()
	f := repository.EventFilter{
		ActiveOnly: !actor.IsAdmin(),
		EventType:  strings.ToLower(strings.TrimSpace(q.EventType)),
	}
	if f.EventType != "" && !types.IsValidEventType(f.EventType) {
		return nil, invalidField("event_type", "Unknown event type.")
	}
	if q.Upcoming {
		f.StartsAfter = &now
	}
	events, err := s.eventRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	mine, err := s.eventRepo.FindAttendancesByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	byEvent := make(map[string]*repository.Attendance, len(mine))
	for _, a := range mine {
		byEvent[a.EventID] = a
	}

	out := make([]*EventDetail, len(events))
	for i, ev := range events {
		out[i] = s.describe(ev, actor, tier, byEvent[ev.ID], now)
	}
	return out, nil
}

func (s *eventService) Get(ctx context.Context, actor *repository.User, id string) (*EventDetail, error) {
	ev, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.IsActive && !actor.IsAdmin() {
		return nil, notFoundError("event_not_found", "Event not found.")
	}
	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	att, err := s.eventRepo.FindAttendance(ctx, ev.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.describe(ev, actor, tier, att, s.now()), nil
}

// ============================================
// Registration
// ============================================

func (s *eventService) Register(ctx context.Context, actor *repository.User, eventID string) (*repository.Attendance, error) {
	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	// Runs with the event row locked, so the seat count it sees is final.
	check := func(ev *repository.Event, registered int, already bool) error {
		d := s.checker.CanRegister(eligibilityView(ev, registered), entitlement.Registrant{
			Staff:             actor.IsAdmin(),
			AlreadyRegistered: already,
			Membership:        tier,
		}, now)
		if !d.Allowed {
			return registrationError(d.Reason)
		}
		if already {
			return registrationError(entitlement.ReasonAlreadyRegistered)
		}
		return nil
	}

	var att *repository.Attendance
	for i := 0; i < ticketAttempts; i++ {
		att, err = s.eventRepo.Register(ctx, eventID, actor.ID, s.tickets(), check)
		if !errors.Is(err, repository.ErrTicketTaken) {
			break
		}
		log.Printf("[Event] Ticket number collision for %s, retrying", eventID)
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, registrationError(entitlement.ReasonAlreadyRegistered)
	}
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, notFoundError("event_not_found", "Event not found.")
	}
	log.Printf("[Event] %s registered for %s", actor.ID, eventID)

	s.announceRegistration(ctx, actor, att)
	return att, nil
}

// announceRegistration is best effort; the attendance is already stored.
func (s *eventService) announceRegistration(ctx context.Context, user *repository.User, att *repository.Attendance) {
	ev := att.Event
	if ev == nil {
		return
	}
	ticket := ""
	if att.Ticket != nil {
		ticket = att.Ticket.TicketNumber
	}
	if s.notifSvc != nil {
		if err := s.notifSvc.SendEventRegistered(ctx, user.ID, ev, ticket); err != nil {
			log.Printf("[Event] Failed to notify %s: %v", user.ID, err)
		}
	}
	if s.mailer != nil {
		if err := s.mailer.SendEventTicket(user.Email, s.ticketMail(ctx, user, ev, ticket)); err != nil {
			log.Printf("[Event] Failed to email ticket to %s: %v", user.ID, err)
		}
	}
	s.publishSeats(ctx, ev.ID)
}

func (s *eventService) ticketMail(ctx context.Context, user *repository.User, ev *repository.Event, ticket string) email.EventTicketData {
	name := user.Username
	if p, err := s.profileRepo.FindByUserID(ctx, user.ID); err == nil && p != nil && p.FullName != "" {
		name = p.FullName
	}
	data := email.EventTicketData{
		Name:         name,
		EventTitle:   ev.Title,
		StartsAt:     ev.StartDate.Format("Monday 2 January 2006, 15:04"),
		TicketNumber: ticket,
	}
	if ev.Location != nil {
		data.Location = *ev.Location
	}
	return data
}

func (s *eventService) publishSeats(ctx context.Context, eventID string) {
	if s.broadcaster == nil {
		return
	}
	ev, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil || ev == nil {
		return
	}
	s.broadcaster.BroadcastRegistrations(ev.ID, ev.RegisteredCount, ev.Capacity)
}

// Cancel is allowed until the event starts, unless attendance was taken.
func (s *eventService) Cancel(ctx context.Context, actor *repository.User, eventID string) error {
	ev, err := s.find(ctx, eventID)
	if err != nil {
		return err
	}
	att, err := s.eventRepo.FindAttendance(ctx, ev.ID, actor.ID)
	if err != nil {
		return err
	}
	if att == nil {
		return notFoundError("not_registered", "You are not registered for this event.")
	}
	if att.Attended {
		return conflictError("already_attended", "Attendance has already been recorded.")
	}
	if !s.now().Before(ev.StartDate) {
		return forbiddenError(string(entitlement.ReasonEventStarted), entitlement.ReasonEventStarted.Message())
	}
	if err := s.eventRepo.DeleteAttendance(ctx, att.ID); err != nil {
		return err
	}
	log.Printf("[Event] %s cancelled registration for %s", actor.ID, ev.ID)
	s.publishSeats(ctx, ev.ID)
	return nil
}

// GuestRegister signs up someone without an account for a public event. A
// minimal account and profile are created the first time an address is seen.
func (s *eventService) GuestRegister(ctx context.Context, eventID string, in GuestInput) (*repository.Attendance, error) {
	ev, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsPublic {
		return nil, forbiddenError("event_not_public", "Guest registration is only open for public events.")
	}

	in.Email = normalizeEmail(in.Email)
	in.PhoneNumber = normalizePhone(in.PhoneNumber)
	f := fieldErrors{}
	checkEmail(f, in.Email)
	checkFullName(f, in.FullName)
	if in.PhoneNumber != "" {
		checkPhone(f, in.PhoneNumber)
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	user, err := s.guestUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, user, ev.ID)
}

func (s *eventService) guestUser(ctx context.Context, in GuestInput) (*repository.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		secret, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user = &repository.User{
			Username: guestUsername(in.Email),
			Email:    in.Email,
			Password: string(secret),
			IsGuest:  true,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return nil, err
			}
			// Lost a race with another registration for the same address.
			if user, err = s.userRepo.FindByEmail(ctx, in.Email); err != nil || user == nil {
				return nil, conflictError("account_exists", "Please try again.")
			}
		} else {
			log.Printf("[Event] Created guest account %s", user.ID)
		}
	}
	if !user.IsGuest || user.IsAdmin() {
		// Real accounts register through their own login.
		return nil, forbiddenError("login_required", "Please log in to register.")
	}

	if p, err := s.profileRepo.FindByUserID(ctx, user.ID); err != nil {
		return nil, err
	} else if p == nil {
		p = &repository.Profile{
			UserID:      user.ID,
			FullName:    strings.TrimSpace(in.FullName),
			PhoneNumber: in.PhoneNumber,
		}
		err := s.profileRepo.CreateWithDefaults(ctx, p, nil, types.MembershipCommunity)
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
	}
	return user, nil
}

// guestUsername derives a unique username from the address.
func guestUsername(address string) string {
	local, _, _ := strings.Cut(address, "@")
	var b strings.Builder
	for _, r := range local {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if len(base) > 20 {
		base = base[:20]
	}
	return "guest_" + base + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
}

func (s *eventService) MyEvents(ctx context.Context, actor *repository.User) ([]*repository.Attendance, error) {
	return s.eventRepo.FindAttendancesByUser(ctx, actor.ID)
}

// ============================================
// Attendance
// ============================================

func (s *eventService) Attendees(ctx context.Context, actor *repository.User, eventID string) ([]*repository.Attendance, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	if _, err := s.find(ctx, eventID); err != nil {
		return nil, err
	}
	return s.eventRepo.FindAttendancesByEvent(ctx, eventID)
}

func (s *eventService) attendance(ctx context.Context, actor *repository.User, id string) (*repository.Attendance, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	a, err := s.eventRepo.FindAttendanceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFoundError("attendance_not_found", "Registration not found.")
	}
	return a, nil
}

func (s *eventService) CheckIn(ctx context.Context, actor *repository.User, attendanceID string) (*repository.Attendance, error) {
	a, err := s.attendance(ctx, actor, attendanceID)
	if err != nil {
		return nil, err
	}
	changed, err := s.eventRepo.CheckIn(ctx, a.ID, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, conflictError("already_checked_in", "This attendee has already been checked in.")
	}
	return s.eventRepo.FindAttendanceByID(ctx, a.ID)
}

func (s *eventService) MarkAttended(ctx context.Context, actor *repository.User, attendanceID string) (*repository.Attendance, error) {
	a, err := s.attendance(ctx, actor, attendanceID)
	if err != nil {
		return nil, err
	}
	changed, err := s.eventRepo.MarkAttended(ctx, a.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, conflictError("already_attended", "Attendance has already been recorded.")
	}
	return s.eventRepo.FindAttendanceByID(ctx, a.ID)
}

func (s *eventService) BulkCheckIn(ctx context.Context, actor *repository.User, eventID string, userIDs []string) (int, error) {
	if !actor.IsAdmin() {
		return 0, errAdminOnly
	}
	if len(userIDs) == 0 {
		return 0, invalidField("user_ids", "Select at least one attendee.")
	}
	for _, id := range userIDs {
		if _, err := uuid.Parse(id); err != nil {
			return 0, invalidField("user_ids", "Attendee ids must be valid ids.")
		}
	}
	if _, err := s.find(ctx, eventID); err != nil {
		return 0, err
	}
	n, err := s.eventRepo.BulkCheckIn(ctx, eventID, userIDs, actor.ID, s.now())
	if err != nil {
		return 0, err
	}
	log.Printf("[Event] %s checked in %d attendees for %s", actor.ID, n, eventID)
	return n, nil
}

// ============================================
// Reminders
// ============================================

func (s *eventService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	events, err := s.eventRepo.FindStartingBetween(ctx, now.Add(23*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range events {
		attendees, err := s.eventRepo.FindAttendancesByEvent(ctx, ev.ID)
		if err != nil {
			log.Printf("[Event] Failed to load attendees of %s: %v", ev.ID, err)
			continue
		}
		for _, a := range attendees {
			if s.notifSvc != nil {
				if err := s.notifSvc.SendEventReminder(ctx, a.UserID, ev, now); err != nil {
					log.Printf("[Event] Failed to remind %s: %v", a.UserID, err)
					continue
				}
			}
			if s.mailer != nil && a.User != nil {
				ticket := ""
				if a.Ticket != nil {
					ticket = a.Ticket.TicketNumber
				}
				if err := s.mailer.SendEventReminder(a.User.Email, s.ticketMail(ctx, a.User, ev, ticket)); err != nil {
					log.Printf("[Event] Failed to email reminder to %s: %v", a.UserID, err)
				}
			}
			sent++
		}
	}
	return sent, nil
}
