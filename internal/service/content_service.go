package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/entitlement"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

// ============================================
// Content Service
// ============================================

type ContentInput struct {
	Title       string
	Description *string
	ContentType string
	AccessLevel string
	URL         *string
	IsActive    *bool
}

// ContentWithProgress pairs an item with the caller's progress on it.
type ContentWithProgress struct {
	Content  *repository.DigitalContent
	Progress *repository.ContentProgress
}

type ContentService interface {
	Create(ctx context.Context, actor *repository.User, in ContentInput) (*repository.DigitalContent, error)
	Update(ctx context.Context, actor *repository.User, id string, in ContentInput) (*repository.DigitalContent, error)
	Delete(ctx context.Context, actor *repository.User, id string) error
	// Get never touches the counters.
	Get(ctx context.Context, actor *repository.User, id string) (*ContentWithProgress, error)
	List(ctx context.Context, actor *repository.User, contentType string) ([]*repository.DigitalContent, error)

	View(ctx context.Context, actor *repository.User, id string) (int, error)
	Download(ctx context.Context, actor *repository.User, id string) (int, error)
	UpdateProgress(ctx context.Context, actor *repository.User, id string, percentage int, completed bool) (*repository.ContentProgress, error)
	// My lists accessible content with the caller's progress attached.
	My(ctx context.Context, actor *repository.User) ([]*ContentWithProgress, error)
	Progress(ctx context.Context, actor *repository.User) ([]*repository.ContentProgress, error)
}

type contentService struct {
	cfg         *config.Config
	contentRepo repository.ContentRepository
	membership  MembershipService
	cache       Cache
	now         func() time.Time
}

func NewContentService(
	cfg *config.Config,
	contentRepo repository.ContentRepository,
	membership MembershipService,
	cache Cache,
	now func() time.Time,
) ContentService {
	return &contentService{cfg: cfg, contentRepo: contentRepo, membership: membership, cache: cache, now: now}
}

const contentCachePrefix = "content:"

func (s *contentService) validate(in ContentInput) (string, types.AccessLevel, error) {
	f := fieldErrors{}
	if strings.TrimSpace(in.Title) == "" {
		f.add("title", "Title is required.")
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if contentType == "" {
		contentType = types.ContentOther
	}
	if !types.IsValidContentType(contentType) {
		f.add("content_type", "Choose one of: "+strings.Join(types.ValidContentTypes, ", ")+".")
	}
	level, ok := types.ParseAccessLevel(in.AccessLevel)
	if !ok {
		f.add("access_level", "Choose all, community, key_access or creative_workspace.")
	}
	return contentType, level, f.err()
}

func (s *contentService) Create(ctx context.Context, actor *repository.User, in ContentInput) (*repository.DigitalContent, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	contentType, level, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	c := &repository.DigitalContent{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		ContentType: contentType,
		AccessLevel: level,
		URL:         in.URL,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedBy:   actor.ID,
	}
	if err := s.contentRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *contentService) Update(ctx context.Context, actor *repository.User, id string, in ContentInput) (*repository.DigitalContent, error) {
	if !actor.IsAdmin() {
		return nil, errAdminOnly
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	contentType, level, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	c.Title = strings.TrimSpace(in.Title)
	c.Description = in.Description
	c.ContentType = contentType
	c.AccessLevel = level
	c.URL = in.URL
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if err := s.contentRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *contentService) Delete(ctx context.Context, actor *repository.User, id string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.contentRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *contentService) find(ctx context.Context, id string) (*repository.DigitalContent, error) {
	c, err := s.contentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFoundError("content_not_found", "Content not found.")
	}
	return c, nil
}

// accessible loads the item and checks the caller can use it right now.
func (s *contentService) accessible(ctx context.Context, actor *repository.User, id string) (*repository.DigitalContent, error) {
	c, err := s.find(ctx, id)
	if err != nil || actor.IsAdmin() {
		return c, err
	}
	if !c.IsActive {
		return nil, notFoundError("content_not_found", "Content not found.")
	}
	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !entitlement.CanAccess(c, tier) {
		return nil, forbiddenError("tier_required", "Your membership does not include this content.")
	}
	return c, nil
}

func (s *contentService) Get(ctx context.Context, actor *repository.User, id string) (*ContentWithProgress, error) {
	c, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	p, err := s.contentRepo.FindProgress(ctx, actor.ID, c.ID)
	if err != nil {
		return nil, err
	}
	return &ContentWithProgress{Content: c, Progress: p}, nil
}

func (s *contentService) List(ctx context.Context, actor *repository.User, contentType string) ([]*repository.DigitalContent, error) {
	f := repository.ContentFilter{ContentType: strings.ToLower(strings.TrimSpace(contentType))}
	if f.ContentType != "" && !types.IsValidContentType(f.ContentType) {
		return nil, invalidField("content_type", "Unknown content type.")
	}
	if actor.IsAdmin() {
		return s.contentRepo.List(ctx, f)
	}

	tier, err := s.membership.CurrentTier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	f.Levels = entitlement.AllowedLevels(tier)
	f.ActiveOnly = true

	key := contentCachePrefix + levelKey(f.Levels) + ":" + f.ContentType
	var cached []*repository.DigitalContent
	if s.cache != nil && s.cache.GetCache(ctx, key, &cached) == nil {
		return cached, nil
	}
	list, err := s.contentRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetCache(ctx, key, list, s.cfg.CatalogCacheTTL); err != nil {
			log.Printf("[Content] Cache write failed: %v", err)
		}
	}
	return list, nil
}

func (s *contentService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCache(ctx, contentCachePrefix+"*"); err != nil {
		log.Printf("[Content] Cache invalidation failed: %v", err)
	}
}

func (s *contentService) View(ctx context.Context, actor *repository.User, id string) (int, error) {
	c, err := s.accessible(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	return s.contentRepo.IncrementViews(ctx, c.ID)
}

func (s *contentService) Download(ctx context.Context, actor *repository.User, id string) (int, error) {
	c, err := s.accessible(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	return s.contentRepo.IncrementDownloads(ctx, c.ID)
}

// UpdateProgress re-checks access before writing; reaching 100 completes.
func (s *contentService) UpdateProgress(ctx context.Context, actor *repository.User, id string, percentage int, completed bool) (*repository.ContentProgress, error) {
	if percentage < 0 || percentage > 100 {
		return nil, invalidField("progress_percentage", "Progress must be between 0 and 100.")
	}
	c, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if completed {
		percentage = 100
	}
	p := &repository.ContentProgress{
		UserID:             actor.ID,
		ContentID:          c.ID,
		ProgressPercentage: percentage,
		Completed:          percentage == 100,
		LastAccessed:       s.now(),
	}
	if err := s.contentRepo.UpsertProgress(ctx, p); err != nil {
		return nil, err
	}
	p.Content = c
	return p, nil
}

func (s *contentService) My(ctx context.Context, actor *repository.User) ([]*ContentWithProgress, error) {
	items, err := s.List(ctx, actor, "")
	if err != nil {
		return nil, err
	}
	progress, err := s.contentRepo.FindProgressByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	byContent := make(map[string]*repository.ContentProgress, len(progress))
	for _, p := range progress {
		byContent[p.ContentID] = p
	}
	out := make([]*ContentWithProgress, len(items))
	for i, c := range items {
		out[i] = &ContentWithProgress{Content: c, Progress: byContent[c.ID]}
	}
	return out, nil
}

func (s *contentService) Progress(ctx context.Context, actor *repository.User) ([]*repository.ContentProgress, error) {
	return s.contentRepo.FindProgressByUser(ctx, actor.ID)
}
