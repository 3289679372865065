package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// Read notifications older than this are removed by the weekly cleanup.
const notificationRetention = 30 * 24 * time.Hour

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	services *service.Services
	notifSvc *notification.Service
}

// NewScheduler creates a new scheduler
func NewScheduler(services *service.Services, notifSvc *notification.Service) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		services: services,
		notifSvc: notifSvc,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		// Every hour - expire benefit activations
		{"0 * * * *", "benefit expiry", s.expireBenefitActivations},
		// Every hour at half past - reminders for events starting in a day
		{"30 * * * *", "event reminders", s.sendEventReminders},
		// Every Sunday at midnight - old notification cleanup
		{"0 0 * * 0", "notification cleanup", s.cleanupOldNotifications},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			log.Printf("[Cron] Running %s...", job.name)
			job.run()
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Println("[Cron] Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Cron] Scheduler stopped")
}

func (s *Scheduler) expireBenefitActivations() {
	n, err := s.services.Benefit.ExpireActivations(context.Background())
	if err != nil {
		log.Printf("[Cron] Error expiring benefit activations: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Cron] Deactivated %d expired benefit activations", n)
	}
}

func (s *Scheduler) sendEventReminders() {
	n, err := s.services.Event.SendReminders(context.Background())
	if err != nil {
		log.Printf("[Cron] Error sending event reminders: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Cron] Sent %d event reminders", n)
	}
}

func (s *Scheduler) cleanupOldNotifications() {
	if s.notifSvc == nil {
		return
	}
	n, err := s.notifSvc.Cleanup(context.Background(), notificationRetention)
	if err != nil {
		log.Printf("[Cron] Error cleaning up notifications: %v", err)
		return
	}
	log.Printf("[Cron] Removed %d old notifications", n)
}

// ManualTrigger allows manual triggering of a job (for testing)
func (s *Scheduler) ManualTrigger(checkType string) {
	switch checkType {
	case "benefits":
		s.expireBenefitActivations()
	case "reminders":
		s.sendEventReminders()
	case "cleanup":
		s.cleanupOldNotifications()
	case "all":
		s.expireBenefitActivations()
		s.sendEventReminders()
		s.cleanupOldNotifications()
	}
}
