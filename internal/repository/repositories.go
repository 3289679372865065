package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	UserRepo         UserRepository
	ProfileRepo      ProfileRepository
	BenefitRepo      BenefitRepository
	ContentRepo      ContentRepository
	EventRepo        EventRepository
	CommunityRepo    CommunityRepository
	NotificationRepo NotificationRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		UserRepo:         NewUserRepository(pool),
		ProfileRepo:      NewProfileRepository(pool),
		BenefitRepo:      NewBenefitRepository(pool),
		ContentRepo:      NewContentRepository(pool),
		EventRepo:        NewEventRepository(pool),
		CommunityRepo:    NewCommunityRepository(pool),
		NotificationRepo: NewNotificationRepository(pool),
	}
}
