package main

import (
	"ginko-backend/handlers"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine) {
	// API routes
	api := r.Group("/api/v1")
	{
		// Public endpoints (no auth required; the webhook authenticates
		// by provider signature)
		api.GET("/health", handlers.Health)
		api.POST("/webhooks/stripe", handlers.StripeWebhook)

		authed := api.Group("", handlers.RequireAuth())
		{
			// Graph namespaces
			authed.POST("/graph/init", handlers.GraphInit)
			authed.GET("/user/graph", handlers.UserGraph)
			authed.POST("/graph/membership/sync", handlers.MembershipSync)

			// Event log: append, backward reads, forward streams
			authed.POST("/events", handlers.AppendEvent)
			authed.GET("/events", handlers.ListEvents)
			authed.GET("/events/stream", handlers.EventStream)
			authed.GET("/events/sse", handlers.EventsSSE)
			authed.GET("/events/ws", handlers.EventsWS)
			authed.GET("/context/initial-load", handlers.InitialLoad)

			// Work entities
			authed.POST("/epic", handlers.CreateEpic)
			authed.POST("/epic/check", handlers.CheckEpicID)
			authed.POST("/epic/decompose", handlers.DecomposeEpic)
			authed.PATCH("/epic/:id/status", handlers.UpdateEpicStatus)
			authed.POST("/sprint", handlers.CreateSprint)
			authed.PATCH("/sprint/:id/status", handlers.UpdateSprintStatus)
			authed.POST("/task", handlers.CreateTask)
			authed.GET("/task/:id/status", handlers.GetTaskStatus)
			authed.PATCH("/task/:id/status", handlers.UpdateTaskStatus)
			authed.POST("/task/:id/claim", handlers.ClaimTask)
			authed.POST("/task/:id/release", handlers.ReleaseTask)
			authed.GET("/task/:id/activity", handlers.TaskActivity)

			// Agent coordination
			authed.POST("/checkpoint", handlers.CreateCheckpoint)
			authed.GET("/checkpoints", handlers.ListCheckpoints)
			authed.POST("/agent/heartbeat", handlers.AgentHeartbeat)
			authed.POST("/user/activity", handlers.UserActivity)

			// Teams and membership
			authed.GET("/team/join", handlers.JoinPreview)
			authed.POST("/team/join", handlers.JoinAccept)
			authed.GET("/team/activity", handlers.TeamActivity)
			authed.GET("/teams/:id/members", handlers.ListMembers)
			authed.POST("/teams/:id/members", handlers.AddMember)
			authed.DELETE("/teams/:id/members/:userId", handlers.RemoveMember)
			authed.POST("/teams/:id/invitations", handlers.CreateInvitation)
		}
	}

	// Health check endpoint
	r.GET("/health", handlers.Health)
}
