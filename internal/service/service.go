package service

import (
	"context"
	"errors"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/email"
	"github.com/Marga-Ghale/together-culture-crm/internal/entitlement"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
)

// Error kinds. Every error a service returns to a caller either is one of
// these or wraps one, so handlers can map it with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("resource already exists")
	ErrCapacity           = errors.New("capacity reached")
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// RuleError is a rejection with a machine-readable reason. Fields carries
// per-field messages for validation failures.
type RuleError struct {
	Kind    error
	Reason  string
	Message string
	Fields  map[string]string
}

func (e *RuleError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *RuleError) Unwrap() error { return e.Kind }

// Is lets a capacity rejection also match ErrConflict.
func (e *RuleError) Is(target error) bool {
	return target == e.Kind || (e.Kind == ErrCapacity && target == ErrConflict)
}

// ReasonOf returns the reason carried by err, if any.
func ReasonOf(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

func validationError(fields map[string]string) error {
	return &RuleError{Kind: ErrValidation, Reason: "invalid_input", Message: "Invalid input.", Fields: fields}
}

func invalidField(field, message string) error {
	return validationError(map[string]string{field: message})
}

func conflictError(reason, message string) error {
	return &RuleError{Kind: ErrConflict, Reason: reason, Message: message}
}

func notFoundError(reason, message string) error {
	return &RuleError{Kind: ErrNotFound, Reason: reason, Message: message}
}

func forbiddenError(reason, message string) error {
	return &RuleError{Kind: ErrForbidden, Reason: reason, Message: message}
}

var errAdminOnly = forbiddenError("admin_required", "Only staff can do this.")

// registrationError turns an eligibility decision into the error kind the
// caller sees.
func registrationError(r entitlement.Reason) error {
	switch r {
	case entitlement.ReasonEventFull:
		return &RuleError{Kind: ErrCapacity, Reason: string(r), Message: r.Message()}
	case entitlement.ReasonAlreadyRegistered:
		return conflictError(string(r), r.Message())
	}
	return forbiddenError(string(r), r.Message())
}

// ============================================
// Infrastructure seams
// ============================================

// TokenStore keeps single-use tokens such as password reset links.
// *db.RedisDB and *db.LocalStore both satisfy it.
type TokenStore interface {
	PutToken(ctx context.Context, purpose, token, value string, ttl time.Duration) error
	TakeToken(ctx context.Context, purpose, token string) (string, error)
}

// Cache holds catalogue listings. *db.RedisDB and *db.LocalStore both
// satisfy it.
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
	InvalidateCache(ctx context.Context, pattern string) error
}

// Mailer is the outbound mail the services send. *email.Service satisfies it.
type Mailer interface {
	SendMembershipApproved(to, name, tier string) error
	SendEventTicket(to string, data email.EventTicketData) error
	SendEventReminder(to string, data email.EventTicketData) error
	SendPasswordReset(to, name, token string, validFor time.Duration) error
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth         AuthService
	Profile      ProfileService
	Membership   MembershipService
	Benefit      BenefitService
	Content      ContentService
	Event        EventService
	Community    CommunityService
	Notification NotificationService
	Broadcaster  *socket.Broadcaster
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config      *config.Config
	Repos       *repository.Repositories
	NotifSvc    *notification.Service
	EmailSvc    Mailer
	Broadcaster *socket.Broadcaster
	Tokens      TokenStore
	Cache       Cache
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func NewServices(deps *ServiceDeps) *Services {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	checker := entitlement.NewChecker(entitlement.ParseMatchMode(deps.Config.EventEligibilityMode))

	membership := NewMembershipService(deps.Repos.ProfileRepo, deps.Repos.UserRepo, deps.NotifSvc, deps.EmailSvc, clock)
	auth := NewAuthService(deps.Config, deps.Repos.UserRepo, deps.Tokens, deps.EmailSvc)

	return &Services{
		Auth:       auth,
		Profile:    NewProfileService(deps.Repos.ProfileRepo, membership, clock),
		Membership: membership,
		Benefit: NewBenefitService(
			deps.Config,
			deps.Repos.BenefitRepo,
			deps.Repos.UserRepo,
			membership,
			deps.NotifSvc,
			deps.Cache,
			clock,
		),
		Content: NewContentService(deps.Config, deps.Repos.ContentRepo, membership, deps.Cache, clock),
		Event: NewEventService(
			deps.Repos.EventRepo,
			deps.Repos.UserRepo,
			deps.Repos.ProfileRepo,
			membership,
			checker,
			deps.NotifSvc,
			deps.EmailSvc,
			deps.Broadcaster,
			clock,
		),
		Community: NewCommunityService(
			deps.Repos.CommunityRepo,
			deps.Repos.UserRepo,
			deps.Repos.ProfileRepo,
			deps.NotifSvc,
			deps.Broadcaster,
		),
		Notification: NewNotificationService(deps.Repos.NotificationRepo, deps.Broadcaster),
		Broadcaster:  deps.Broadcaster,
	}
}
