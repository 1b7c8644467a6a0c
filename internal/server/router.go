// Package server assembles the HTTP API.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/analytics"
	"github.com/teamfaces/teamfaces/internal/auth"
	"github.com/teamfaces/teamfaces/internal/emaillogs"
	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/middleware"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/onboarding"
	"github.com/teamfaces/teamfaces/internal/presence"
	"github.com/teamfaces/teamfaces/internal/realtime"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// Deps are the services the API is built from. EmailLogs may be nil.
type Deps struct {
	Team          *team.Repository
	Auth          *auth.Service
	Editor        *presence.Editor
	Onboarding    *onboarding.Service
	Hub           *realtime.Hub
	EmailLogs     *emaillogs.Repository
	ActivityLimit int
	CORSOrigins   string
	Logger        *zap.Logger
}

// NewRouter builds the gin engine with every route.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	teamHandler := team.NewHandler(d.Team, logger)
	authHandler := auth.NewHandler(d.Auth, logger)
	presenceHandler := presence.NewHandler(d.Editor, logger)
	onboardingHandler := onboarding.NewHandler(d.Onboarding, logger)
	dashboardHandler := analytics.NewHandler(d.Team, d.Hub, d.ActivityLimit, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", onboardingHandler.Register)
		authGroup.POST("/password-reset", authHandler.RequestReset)
		authGroup.POST("/password-reset/confirm", authHandler.ConfirmReset)
	}

	// Onboarding (public)
	router.GET("/setup/status", onboardingHandler.Status)
	router.POST("/setup", onboardingHandler.Setup)
	router.POST("/join", onboardingHandler.Join)
	router.GET("/invites/:code", teamHandler.PreviewInvite)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(d.Auth))
	{
		api.POST("/auth/logout", authHandler.Logout)
		api.GET("/auth/me", authHandler.Me)
		api.PATCH("/auth/me", authHandler.UpdateMe)

		api.GET("/team", middleware.RequirePermission(models.PermViewTeam), teamHandler.GetTeam)
		api.PATCH("/team", middleware.RequirePermission(models.PermManageTeam), presenceHandler.UpdateTeam)
		api.GET("/team/members", middleware.RequirePermission(models.PermViewTeam), teamHandler.ListMembers)
		api.PUT("/team/members/me", middleware.RequirePermission(models.PermUpdateStatus), presenceHandler.UpdateMe)
		api.GET("/team/members/:id", middleware.RequirePermission(models.PermViewTeam), teamHandler.GetMember)
		api.PATCH("/team/members/:id", middleware.RequirePermission(models.PermManageCards), teamHandler.UpdateMember)

		admin := api.Group("/admin")
		admin.POST("/invites", middleware.RequirePermission(models.PermInviteMembers), teamHandler.CreateInvite)
		admin.GET("/invites", middleware.RequirePermission(models.PermInviteMembers), teamHandler.ListInvites)
		admin.GET("/dashboard", middleware.RequirePermission(models.PermViewAnalytics), dashboardHandler.Get)
		if d.EmailLogs != nil {
			admin.GET("/emails", middleware.RequirePermission(models.PermManageSettings), emaillogs.NewHandler(d.EmailLogs).List)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/roster",
		middleware.OptionalJWT(d.Auth),
		middleware.Guard(guard.Authenticated()),
		realtime.ServeRoster(d.Hub, d.Team, logger),
	)

	return router
}
