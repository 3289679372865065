package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// NewMemoryRepositories creates in-memory repositories (for testing/fallback).
// They enforce the same uniqueness rules as the SQL schema.
func NewMemoryRepositories() *Repositories {
	s := &memStore{
		users:         map[string]*User{},
		refreshTokens: map[string]*RefreshToken{},
		profiles:      map[string]*Profile{},
		memberships:   map[string]*Membership{},
		interests:     map[string]*Interest{},
		benefits:      map[string]*Benefit{},
		userBenefits:  map[string]*UserBenefit{},
		contents:      map[string]*DigitalContent{},
		progress:      map[string]*ContentProgress{},
		events:        map[string]*Event{},
		attendances:   map[string]*Attendance{},
		tickets:       map[string]*EventTicket{},
		discussions:   map[string]*Discussion{},
		replies:       map[string]*Reply{},
		reactions:     map[string]bool{},
		messages:      map[string]*Message{},
		messageLikes:  map[string]bool{},
		notifications: map[string]*Notification{},
	}
	return &Repositories{
		UserRepo:         &memUserRepository{s},
		ProfileRepo:      &memProfileRepository{s},
		BenefitRepo:      &memBenefitRepository{s},
		ContentRepo:      &memContentRepository{s},
		EventRepo:        &memEventRepository{s},
		CommunityRepo:    &memCommunityRepository{s},
		NotificationRepo: &memNotificationRepository{s},
	}
}

type memStore struct {
	mu sync.Mutex

	users         map[string]*User
	refreshTokens map[string]*RefreshToken
	profiles      map[string]*Profile
	memberships   map[string]*Membership
	interests     map[string]*Interest
	benefits      map[string]*Benefit
	userBenefits  map[string]*UserBenefit
	usageLogs     []*BenefitUsageLog
	contents      map[string]*DigitalContent
	progress      map[string]*ContentProgress
	events        map[string]*Event
	attendances   map[string]*Attendance
	tickets       map[string]*EventTicket // by attendance id
	discussions   map[string]*Discussion
	replies       map[string]*Reply
	reactions     map[string]bool // reply|user -> liked
	messages      map[string]*Message
	messageLikes  map[string]bool // message|user
	notifications map[string]*Notification
}

func newID() string { return uuid.New().String() }

func pairKey(a, b string) string { return a + "|" + b }

func containsLevel(levels []types.AccessLevel, l types.AccessLevel) bool {
	for _, x := range levels {
		if x == l {
			return true
		}
	}
	return false
}

// ============================================
// Users
// ============================================

type memUserRepository struct{ s *memStore }

func (r *memUserRepository) Create(ctx context.Context, user *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username || strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	user.ID = newID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *memUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.user(id), nil
}

func (s *memStore) user(id string) *User {
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (r *memUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepository) FindStaff(ctx context.Context) ([]*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*User
	for _, u := range r.s.users {
		if u.IsAdmin() {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *memUserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.Password = hash
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memUserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (r *memUserRepository) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = newID()
	token.CreatedAt = time.Now()
	cp := *token
	r.s.refreshTokens[token.Token] = &cp
	return nil
}

func (r *memUserRepository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rt, ok := r.s.refreshTokens[token]; ok {
		cp := *rt
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.refreshTokens, token)
	return nil
}

func (r *memUserRepository) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, rt := range r.s.refreshTokens {
		if rt.UserID == userID {
			delete(r.s.refreshTokens, k)
		}
	}
	return nil
}

// ============================================
// Profiles, memberships, interests
// ============================================

type memProfileRepository struct{ s *memStore }

func (r *memProfileRepository) CreateWithDefaults(ctx context.Context, p *Profile, interests []types.InterestType, tier types.MembershipType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.profiles {
		if existing.UserID == p.UserID {
			return ErrDuplicate
		}
	}
	now := time.Now()
	p.ID = newID()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.s.profiles[p.ID] = &cp

	for _, it := range interests {
		if r.s.openInterest(p.ID, it) != nil {
			continue
		}
		id := newID()
		r.s.interests[id] = &Interest{ID: id, ProfileID: p.ID, InterestType: it, StartDate: now}
	}

	id := newID()
	r.s.memberships[id] = &Membership{
		ID: id, ProfileID: p.ID, MembershipType: tier,
		StartDate: now, IsApproved: true, ApprovedDate: &now,
	}
	return nil
}

func (r *memProfileRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memProfileRepository) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memProfileRepository) Update(ctx context.Context, p *Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.ID]; !ok {
		return nil
	}
	p.UpdatedAt = time.Now()
	cp := *p
	r.s.profiles[p.ID] = &cp
	return nil
}

func (r *memProfileRepository) ListMembers(ctx context.Context) ([]*Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*Profile, 0, len(r.s.profiles))
	for _, p := range r.s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (s *memStore) openMembership(profileID string, approved bool) *Membership {
	for _, m := range s.memberships {
		if m.ProfileID == profileID && m.EndDate == nil && m.IsApproved == approved {
			return m
		}
	}
	return nil
}

func copyMembership(m *Membership) *Membership {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func (r *memProfileRepository) CreateMembershipRequest(ctx context.Context, m *Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.openMembership(m.ProfileID, false) != nil {
		return ErrDuplicate
	}
	m.ID = newID()
	m.IsApproved = false
	cp := *m
	r.s.memberships[m.ID] = &cp
	return nil
}

func (r *memProfileRepository) FindMembershipByID(ctx context.Context, id string) (*Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyMembership(r.s.memberships[id]), nil
}

func (r *memProfileRepository) FindCurrentMembership(ctx context.Context, profileID string) (*Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyMembership(r.s.openMembership(profileID, true)), nil
}

func (r *memProfileRepository) FindPendingMembership(ctx context.Context, profileID string) (*Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyMembership(r.s.openMembership(profileID, false)), nil
}

func (r *memProfileRepository) FindMembershipHistory(ctx context.Context, profileID string) ([]*Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Membership
	for _, m := range r.s.memberships {
		if m.ProfileID == profileID {
			out = append(out, copyMembership(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *memProfileRepository) FindAllPendingMemberships(ctx context.Context) ([]*PendingMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*PendingMembership
	for _, m := range r.s.memberships {
		if !m.IsPending() {
			continue
		}
		p := r.s.profiles[m.ProfileID]
		if p == nil {
			continue
		}
		pc := *p
		out = append(out, &PendingMembership{
			Membership: copyMembership(m),
			Profile:    &pc,
			User:       r.s.user(p.UserID),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Membership.StartDate.Before(out[j].Membership.StartDate)
	})
	return out, nil
}

func (r *memProfileRepository) ApproveMembership(ctx context.Context, id, approverID string, at time.Time) (*Membership, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok {
		return nil, false, nil
	}
	if m.IsApproved {
		return copyMembership(m), false, nil
	}
	if m.EndDate != nil {
		return nil, false, ErrClosed
	}

	for _, other := range r.s.memberships {
		if other.ProfileID == m.ProfileID && other.ID != m.ID && other.IsCurrent() {
			end := at
			other.EndDate = &end
		}
	}
	m.IsApproved = true
	approver := approverID
	m.ApprovedBy = &approver
	approvedAt := at
	m.ApprovedDate = &approvedAt
	return copyMembership(m), true, nil
}

func (r *memProfileRepository) DeletePendingMembership(ctx context.Context, profileID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.s.openMembership(profileID, false)
	if m == nil {
		return false, nil
	}
	delete(r.s.memberships, m.ID)
	return true, nil
}

func (s *memStore) openInterest(profileID string, it types.InterestType) *Interest {
	for _, i := range s.interests {
		if i.ProfileID == profileID && i.InterestType == it && i.EndDate == nil {
			return i
		}
	}
	return nil
}

func (r *memProfileRepository) FindCurrentInterests(ctx context.Context, profileID string) ([]*Interest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Interest
	for _, i := range r.s.interests {
		if i.ProfileID == profileID && i.EndDate == nil {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].InterestType < out[b].InterestType })
	return out, nil
}

func (r *memProfileRepository) FindInterestHistory(ctx context.Context, profileID string) ([]*Interest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Interest
	for _, i := range r.s.interests {
		if i.ProfileID == profileID {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartDate.After(out[b].StartDate) })
	return out, nil
}

func (r *memProfileRepository) SetInterests(ctx context.Context, profileID string, set []types.InterestType, at time.Time) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[types.InterestType]bool{}
	for _, it := range set {
		want[it] = true
	}

	var opened, closed int
	for _, i := range r.s.interests {
		if i.ProfileID == profileID && i.EndDate == nil && !want[i.InterestType] {
			end := at
			i.EndDate = &end
			closed++
		}
	}
	for it := range want {
		if r.s.openInterest(profileID, it) == nil {
			id := newID()
			r.s.interests[id] = &Interest{ID: id, ProfileID: profileID, InterestType: it, StartDate: at}
			opened++
		}
	}
	return opened, closed, nil
}

// ============================================
// Benefits
// ============================================

type memBenefitRepository struct{ s *memStore }

func (r *memBenefitRepository) Create(ctx context.Context, b *Benefit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = newID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	r.s.benefits[b.ID] = &cp
	return nil
}

func (r *memBenefitRepository) FindByID(ctx context.Context, id string) (*Benefit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.benefit(id), nil
}

func (s *memStore) benefit(id string) *Benefit {
	if b, ok := s.benefits[id]; ok {
		cp := *b
		return &cp
	}
	return nil
}

func (r *memBenefitRepository) List(ctx context.Context, f BenefitFilter) ([]*Benefit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Benefit
	for _, b := range r.s.benefits {
		if f.ActiveOnly && !b.IsActive {
			continue
		}
		if len(f.Levels) > 0 && !containsLevel(f.Levels, b.MembershipLevelRequired) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memBenefitRepository) Update(ctx context.Context, b *Benefit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.benefits[b.ID]; !ok {
		return nil
	}
	b.UpdatedAt = time.Now()
	cp := *b
	r.s.benefits[b.ID] = &cp
	return nil
}

func (r *memBenefitRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.benefits, id)
	for k, ub := range r.s.userBenefits {
		if ub.BenefitID == id {
			delete(r.s.userBenefits, k)
		}
	}
	return nil
}

func (r *memBenefitRepository) Activate(ctx context.Context, ub *UserBenefit) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(ub.UserID, ub.BenefitID)
	if existing, ok := r.s.userBenefits[key]; ok {
		existing.IsActive = true
		existing.ExpiresAt = ub.ExpiresAt
		ub.ID = existing.ID
		ub.ActivatedAt = existing.ActivatedAt
		ub.IsActive = true
		return false, nil
	}
	ub.ID = newID()
	ub.IsActive = true
	cp := *ub
	cp.Benefit = nil
	r.s.userBenefits[key] = &cp
	return true, nil
}

func (s *memStore) userBenefit(ub *UserBenefit) *UserBenefit {
	cp := *ub
	cp.Benefit = s.benefit(ub.BenefitID)
	return &cp
}

func (r *memBenefitRepository) FindUserBenefit(ctx context.Context, userID, benefitID string) (*UserBenefit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ub, ok := r.s.userBenefits[pairKey(userID, benefitID)]; ok {
		return r.s.userBenefit(ub), nil
	}
	return nil, nil
}

func (r *memBenefitRepository) FindUserBenefits(ctx context.Context, userID string) ([]*UserBenefit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*UserBenefit
	for _, ub := range r.s.userBenefits {
		if ub.UserID == userID {
			out = append(out, r.s.userBenefit(ub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivatedAt.After(out[j].ActivatedAt) })
	return out, nil
}

func (r *memBenefitRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, ub := range r.s.userBenefits {
		if ub.IsActive && ub.ExpiresAt != nil && !ub.ExpiresAt.After(now) {
			ub.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *memBenefitRepository) LogUsage(ctx context.Context, l *BenefitUsageLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = newID()
	cp := *l
	cp.Benefit = nil
	r.s.usageLogs = append(r.s.usageLogs, &cp)
	return nil
}

func (r *memBenefitRepository) FindUsage(ctx context.Context, f UsageFilter) ([]*BenefitUsageLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*BenefitUsageLog
	for _, l := range r.s.usageLogs {
		if f.UserID != "" && l.UserID != f.UserID {
			continue
		}
		if f.BenefitID != "" && l.BenefitID != f.BenefitID {
			continue
		}
		cp := *l
		cp.Benefit = r.s.benefit(l.BenefitID)
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsedAt.After(out[j].UsedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ============================================
// Digital content
// ============================================

type memContentRepository struct{ s *memStore }

func (r *memContentRepository) Create(ctx context.Context, c *DigitalContent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = newID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.s.contents[c.ID] = &cp
	return nil
}

func (s *memStore) content(id string) *DigitalContent {
	if c, ok := s.contents[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (r *memContentRepository) FindByID(ctx context.Context, id string) (*DigitalContent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.content(id), nil
}

func (r *memContentRepository) List(ctx context.Context, f ContentFilter) ([]*DigitalContent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*DigitalContent
	for _, c := range r.s.contents {
		if f.ActiveOnly && !c.IsActive {
			continue
		}
		if len(f.Levels) > 0 && !containsLevel(f.Levels, c.AccessLevel) {
			continue
		}
		if f.ContentType != "" && c.ContentType != f.ContentType {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memContentRepository) Update(ctx context.Context, c *DigitalContent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.contents[c.ID]
	if !ok {
		return nil
	}
	c.UpdatedAt = time.Now()
	c.Views, c.Downloads = existing.Views, existing.Downloads
	cp := *c
	r.s.contents[c.ID] = &cp
	return nil
}

func (r *memContentRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.contents, id)
	for k, p := range r.s.progress {
		if p.ContentID == id {
			delete(r.s.progress, k)
		}
	}
	return nil
}

func (r *memContentRepository) IncrementViews(ctx context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contents[id]
	if !ok {
		return 0, nil
	}
	c.Views++
	return c.Views, nil
}

func (r *memContentRepository) IncrementDownloads(ctx context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contents[id]
	if !ok {
		return 0, nil
	}
	c.Downloads++
	return c.Downloads, nil
}

func (r *memContentRepository) UpsertProgress(ctx context.Context, p *ContentProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(p.UserID, p.ContentID)
	if existing, ok := r.s.progress[key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = newID()
	}
	cp := *p
	cp.Content = nil
	r.s.progress[key] = &cp
	return nil
}

func (r *memContentRepository) FindProgress(ctx context.Context, userID, contentID string) (*ContentProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.progress[pairKey(userID, contentID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Content = r.s.content(p.ContentID)
	return &cp, nil
}

func (r *memContentRepository) FindProgressByUser(ctx context.Context, userID string) ([]*ContentProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*ContentProgress
	for _, p := range r.s.progress {
		if p.UserID == userID {
			cp := *p
			cp.Content = r.s.content(p.ContentID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAccessed.After(out[j].LastAccessed) })
	return out, nil
}

// ============================================
// Events and attendance
// ============================================

type memEventRepository struct{ s *memStore }

func (s *memStore) event(id string) *Event {
	e, ok := s.events[id]
	if !ok {
		return nil
	}
	cp := *e
	cp.RegisteredCount, cp.AttendedCount = 0, 0
	for _, a := range s.attendances {
		if a.EventID == id {
			cp.RegisteredCount++
			if a.Attended {
				cp.AttendedCount++
			}
		}
	}
	return &cp
}

func (r *memEventRepository) Create(ctx context.Context, e *Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = newID()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.s.events[e.ID] = &cp
	return nil
}

func (r *memEventRepository) FindByID(ctx context.Context, id string) (*Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.event(id), nil
}

func (r *memEventRepository) List(ctx context.Context, f EventFilter) ([]*Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Event
	for id, e := range r.s.events {
		if f.ActiveOnly && !e.IsActive {
			continue
		}
		if f.PublicOnly && !e.IsPublic {
			continue
		}
		if f.StartsAfter != nil && !e.StartDate.After(*f.StartsAfter) {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		out = append(out, r.s.event(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memEventRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]*Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Event
	for id, e := range r.s.events {
		if e.IsActive && !e.StartDate.Before(from) && e.StartDate.Before(to) {
			out = append(out, r.s.event(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memEventRepository) Update(ctx context.Context, e *Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[e.ID]; !ok {
		return nil
	}
	e.UpdatedAt = time.Now()
	cp := *e
	r.s.events[e.ID] = &cp
	return nil
}

func (r *memEventRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.events, id)
	for k, a := range r.s.attendances {
		if a.EventID == id {
			delete(r.s.attendances, k)
			delete(r.s.tickets, k)
		}
	}
	return nil
}

func (r *memEventRepository) Register(ctx context.Context, eventID, userID, ticketNumber string, check RegisterCheck) (*Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ev := r.s.event(eventID)
	if ev == nil {
		return nil, nil
	}
	already := false
	for _, a := range r.s.attendances {
		if a.EventID == eventID && a.UserID == userID {
			already = true
		}
	}
	if err := check(ev, ev.RegisteredCount, already); err != nil {
		return nil, err
	}
	if already {
		return nil, ErrDuplicate
	}
	for _, t := range r.s.tickets {
		if t.TicketNumber == ticketNumber {
			return nil, ErrTicketTaken
		}
	}

	now := time.Now()
	a := &Attendance{ID: newID(), EventID: eventID, UserID: userID, RegisteredAt: now}
	r.s.attendances[a.ID] = a
	t := &EventTicket{ID: newID(), AttendanceID: a.ID, TicketNumber: ticketNumber, IssuedAt: now}
	r.s.tickets[a.ID] = t

	out := r.s.attendance(a)
	out.Event = r.s.event(eventID)
	return out, nil
}

func (s *memStore) attendance(a *Attendance) *Attendance {
	cp := *a
	if t, ok := s.tickets[a.ID]; ok {
		tc := *t
		cp.Ticket = &tc
	}
	cp.User = s.user(a.UserID)
	return &cp
}

func (r *memEventRepository) FindAttendance(ctx context.Context, eventID, userID string) (*Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attendances {
		if a.EventID == eventID && a.UserID == userID {
			return r.s.attendance(a), nil
		}
	}
	return nil, nil
}

func (r *memEventRepository) FindAttendanceByID(ctx context.Context, id string) (*Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.attendances[id]; ok {
		return r.s.attendance(a), nil
	}
	return nil, nil
}

func (r *memEventRepository) FindAttendancesByEvent(ctx context.Context, eventID string) ([]*Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Attendance
	for _, a := range r.s.attendances {
		if a.EventID == eventID {
			out = append(out, r.s.attendance(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (r *memEventRepository) FindAttendancesByUser(ctx context.Context, userID string) ([]*Attendance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Attendance
	for _, a := range r.s.attendances {
		if a.UserID == userID {
			cp := r.s.attendance(a)
			cp.Event = r.s.event(a.EventID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (r *memEventRepository) DeleteAttendance(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.attendances, id)
	delete(r.s.tickets, id)
	return nil
}

func (r *memEventRepository) MarkAttended(ctx context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attendances[id]
	if !ok || a.Attended {
		return false, nil
	}
	a.Attended = true
	a.AttendedAt = &at
	return true, nil
}

func (r *memEventRepository) CheckIn(ctx context.Context, id, staffID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attendances[id]
	if !ok || a.CheckedIn {
		return false, nil
	}
	checkIn(a, staffID, at)
	return true, nil
}

func checkIn(a *Attendance, staffID string, at time.Time) {
	staff := staffID
	a.CheckedIn = true
	a.CheckedInAt = &at
	a.CheckedInBy = &staff
	a.Attended = true
	if a.AttendedAt == nil {
		a.AttendedAt = &at
	}
}

func (r *memEventRepository) BulkCheckIn(ctx context.Context, eventID string, userIDs []string, staffID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	n := 0
	for _, a := range r.s.attendances {
		if a.EventID == eventID && want[a.UserID] && !a.CheckedIn {
			checkIn(a, staffID, at)
			n++
		}
	}
	return n, nil
}

// ============================================
// Community
// ============================================

type memCommunityRepository struct{ s *memStore }

func (r *memCommunityRepository) CreateDiscussion(ctx context.Context, d *Discussion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = newID()
	d.CreatedAt = time.Now()
	d.RepliesCount = 0
	cp := *d
	cp.Author = nil
	r.s.discussions[d.ID] = &cp
	return nil
}

func (s *memStore) discussion(d *Discussion) *Discussion {
	cp := *d
	cp.Author = s.user(d.AuthorID)
	return &cp
}

func (r *memCommunityRepository) FindDiscussionByID(ctx context.Context, id string) (*Discussion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.discussions[id]; ok {
		return r.s.discussion(d), nil
	}
	return nil, nil
}

func (r *memCommunityRepository) ListDiscussions(ctx context.Context) ([]*Discussion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Discussion
	for _, d := range r.s.discussions {
		out = append(out, r.s.discussion(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memCommunityRepository) CreateReply(ctx context.Context, reply *Reply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.discussions[reply.DiscussionID]
	if !ok {
		return nil
	}
	reply.ID = newID()
	reply.CreatedAt = time.Now()
	cp := *reply
	cp.Author = nil
	r.s.replies[reply.ID] = &cp
	d.RepliesCount++
	return nil
}

func (s *memStore) reply(rp *Reply, viewerID string) *Reply {
	cp := *rp
	cp.Likes, cp.Dislikes, cp.MyReaction = 0, 0, nil
	for k, liked := range s.reactions {
		replyID, userID, _ := strings.Cut(k, "|")
		if replyID != rp.ID {
			continue
		}
		if liked {
			cp.Likes++
		} else {
			cp.Dislikes++
		}
		if userID == viewerID {
			v := liked
			cp.MyReaction = &v
		}
	}
	cp.Author = s.user(rp.AuthorID)
	return &cp
}

func (r *memCommunityRepository) FindReplyByID(ctx context.Context, id, viewerID string) (*Reply, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rp, ok := r.s.replies[id]; ok {
		return r.s.reply(rp, viewerID), nil
	}
	return nil, nil
}

func (r *memCommunityRepository) FindReplies(ctx context.Context, discussionID, viewerID string) ([]*Reply, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Reply
	for _, rp := range r.s.replies {
		if rp.DiscussionID == discussionID {
			out = append(out, r.s.reply(rp, viewerID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memCommunityRepository) SetReaction(ctx context.Context, replyID, userID string, like bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(replyID, userID)
	if current, ok := r.s.reactions[key]; ok && current == like {
		delete(r.s.reactions, key)
		return nil
	}
	r.s.reactions[key] = like
	return nil
}

func (r *memCommunityRepository) CreateMessage(ctx context.Context, m *Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = newID()
	m.CreatedAt = time.Now()
	cp := *m
	cp.Sender, cp.Recipient = nil, nil
	r.s.messages[m.ID] = &cp
	return nil
}

func (s *memStore) message(m *Message, viewerID string) *Message {
	cp := *m
	cp.Likes, cp.LikedByMe = 0, false
	for k := range s.messageLikes {
		messageID, userID, _ := strings.Cut(k, "|")
		if messageID != m.ID {
			continue
		}
		cp.Likes++
		if userID == viewerID {
			cp.LikedByMe = true
		}
	}
	cp.Sender = s.user(m.SenderID)
	cp.Recipient = s.user(m.RecipientID)
	return &cp
}

func (r *memCommunityRepository) FindMessageByID(ctx context.Context, id, viewerID string) (*Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		return r.s.message(m, viewerID), nil
	}
	return nil, nil
}

func (r *memCommunityRepository) FindMessagesForUser(ctx context.Context, userID string) ([]*Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Message
	for _, m := range r.s.messages {
		if m.SenderID == userID || m.RecipientID == userID {
			out = append(out, r.s.message(m, userID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memCommunityRepository) ToggleMessageLike(ctx context.Context, messageID, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pairKey(messageID, userID)
	if r.s.messageLikes[key] {
		delete(r.s.messageLikes, key)
		return false, nil
	}
	r.s.messageLikes[key] = true
	return true, nil
}

// ============================================
// Notifications
// ============================================

type memNotificationRepository struct{ s *memStore }

func (r *memNotificationRepository) Create(ctx context.Context, n *Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = newID()
	n.CreatedAt = time.Now()
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r *memNotificationRepository) FindByUserID(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*Notification
	for _, n := range r.s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > 100 {
		out = out[:100]
	}
	return out, nil
}

func (r *memNotificationRepository) CountByUserID(ctx context.Context, userID string) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total, unread := 0, 0
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			total++
			if !n.Read {
				unread++
			}
		}
	}
	return total, unread, nil
}

func (r *memNotificationRepository) MarkAsRead(ctx context.Context, id, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.Read = true
	return true, nil
}

func (r *memNotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time, readOnly bool) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for id, n := range r.s.notifications {
		if n.CreatedAt.Before(olderThan) && (!readOnly || n.Read) {
			delete(r.s.notifications, id)
			count++
		}
	}
	return count, nil
}
