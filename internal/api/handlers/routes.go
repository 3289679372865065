package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

// RegisterRoutes mounts every API route under api.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers, authService service.AuthService) {
	api.Use(middleware.RequireUUIDParam("id"))

	// ============================================
	// Public routes (no auth required)
	// ============================================
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.POST("/password-reset", h.Auth.RequestPasswordReset)
		auth.POST("/password-reset/confirm", h.Auth.ConfirmPasswordReset)
	}

	api.POST("/events/:id/guest-register", h.Event.GuestRegister)

	// ============================================
	// Protected routes (require auth middleware)
	// ============================================
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.GET("/auth/me", h.User.GetCurrentUser)

		profile := protected.Group("/profile")
		{
			profile.POST("", h.Profile.Create)
			profile.GET("", h.Profile.Get)
			profile.PUT("", h.Profile.Update)
			profile.GET("/interests/history", h.Profile.InterestHistory)
		}

		membership := protected.Group("/membership")
		{
			membership.POST("/request", h.Membership.Request)
			membership.DELETE("/request", h.Membership.CancelPending)
			membership.GET("/history", h.Membership.History)
			membership.GET("/current", h.Membership.Current)
		}

		benefits := protected.Group("/benefits")
		{
			benefits.GET("", h.Benefit.List)
			benefits.GET("/my", h.Benefit.My)
			benefits.GET("/usage", h.Benefit.Usage)
			benefits.GET("/:id", h.Benefit.Get)
			benefits.POST("/:id/activate", h.Benefit.Activate)
			benefits.POST("/:id/use", h.Benefit.Use)
		}

		content := protected.Group("/content")
		{
			content.GET("", h.Content.List)
			content.GET("/my", h.Content.My)
			content.GET("/progress", h.Content.Progress)
			content.GET("/:id", h.Content.Get)
			content.POST("/:id/view", h.Content.View)
			content.POST("/:id/download", h.Content.Download)
			content.POST("/:id/progress", h.Content.UpdateProgress)
		}

		events := protected.Group("/events")
		{
			events.GET("", h.Event.List)
			events.GET("/upcoming", h.Event.Upcoming)
			events.GET("/my", h.Event.MyEvents)
			events.GET("/:id", h.Event.Get)
			events.GET("/:id/status", h.Event.Status)
			events.POST("/:id/register", h.Event.Register)
			events.DELETE("/:id/register", h.Event.Cancel)
		}

		community := protected.Group("/community")
		{
			community.GET("/members", h.Community.Members)
			community.GET("/discussions", h.Community.ListDiscussions)
			community.POST("/discussions", h.Community.CreateDiscussion)
			community.GET("/discussions/:id", h.Community.GetDiscussion)
			community.POST("/discussions/:id/replies", h.Community.Reply)
			community.POST("/replies/:id/react", h.Community.React)
			community.GET("/messages", h.Community.Messages)
			community.POST("/messages", h.Community.SendMessage)
			community.POST("/messages/:id/like", h.Community.ToggleLike)
			community.POST("/messages/:id/forward", h.Community.Forward)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/count", h.Notification.Count)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
			notifications.PUT("/read-all", h.Notification.MarkAllRead)
		}

		// ============================================
		// Staff routes
		// ============================================
		admin := protected.Group("/admin")
		admin.Use(middleware.RequireStaff())
		{
			admin.GET("/profiles/:id", h.Profile.AdminGet)
			admin.PUT("/profiles/:id", h.Profile.AdminUpdate)

			admin.GET("/membership/pending", h.Membership.ListPending)
			admin.POST("/membership/:id/approve", h.Membership.Approve)

			admin.POST("/benefits", h.Benefit.Create)
			admin.PUT("/benefits/:id", h.Benefit.Update)
			admin.DELETE("/benefits/:id", h.Benefit.Delete)
			admin.POST("/benefits/:id/log-usage", h.Benefit.LogUsage)

			admin.POST("/content", h.Content.Create)
			admin.PUT("/content/:id", h.Content.Update)
			admin.DELETE("/content/:id", h.Content.Delete)

			admin.POST("/events", h.Event.Create)
			admin.PUT("/events/:id", h.Event.Update)
			admin.DELETE("/events/:id", h.Event.Delete)
			admin.GET("/events/:id/attendees", h.Event.Attendees)
			admin.POST("/events/:id/bulk-check-in", h.Event.BulkCheckIn)
			admin.POST("/attendance/:id/check-in", h.Event.CheckIn)
			admin.POST("/attendance/:id/mark-attended", h.Event.MarkAttended)
		}
	}
}
