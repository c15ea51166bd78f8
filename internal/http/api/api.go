// Package api wires the authentication and authorization endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/authn"
	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/antarr/jordan-sub000/internal/http/api/handlers"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/antarr/jordan-sub000/internal/models"
	"github.com/antarr/jordan-sub000/internal/rbac"
	"github.com/antarr/jordan-sub000/internal/security"
	"github.com/antarr/jordan-sub000/internal/twofactor"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles the components the routes depend on.
type Services struct {
	DB        *gorm.DB
	JWT       config.JWTConfig
	Orch      *authn.Orchestrator
	Policy    *lockout.Policy
	RBAC      *rbac.Service
	TwoFactor *twofactor.Service
	Recorder  *audit.Recorder
}

// RegisterRoutes registers public, authenticated, and admin routes.
func RegisterRoutes(r *gin.Engine, svc Services) {
	if r == nil || svc.DB == nil {
		return
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/v0/auth")

	authHandler := handlers.NewAuthHandler(svc.Orch)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)
	auth.POST("/api/login", authHandler.APILogin)
	auth.POST("/api/refresh", authHandler.Refresh)
	auth.POST("/otc/request", authHandler.RequestCode)

	unlockHandler := handlers.NewUnlockHandler(svc.Policy, svc.Recorder)
	auth.POST("/unlock", unlockHandler.Unlock)

	twoFactorHandler := handlers.NewTwoFactorHandler(svc.TwoFactor, svc.Orch)
	auth.POST("/2fa/login/begin", twoFactorHandler.BeginLogin)
	auth.POST("/2fa/login/finish", twoFactorHandler.FinishLogin)

	authed := auth.Group("")
	authed.Use(accessAuthMiddleware(svc.DB, svc.JWT))
	authed.POST("/api/logout", authHandler.APILogout)
	authed.GET("/2fa/status", twoFactorHandler.Status)
	authed.GET("/2fa/credentials", twoFactorHandler.ListCredentials)
	authed.POST("/2fa/credentials/begin", twoFactorHandler.BeginEnrollment)
	authed.POST("/2fa/credentials/finish", twoFactorHandler.FinishEnrollment)
	authed.DELETE("/2fa/credentials/:id", twoFactorHandler.DeleteCredential)

	admin := r.Group("/v0/admin")
	admin.Use(accessAuthMiddleware(svc.DB, svc.JWT))

	adminHandler := handlers.NewAdminHandler(svc.DB, svc.Policy, svc.RBAC, svc.Recorder)
	admin.POST("/users/:id/lock", requirePermission(svc.RBAC, svc.Recorder, "users.lock"), adminHandler.LockUser)
	admin.POST("/users/:id/unlock", requirePermission(svc.RBAC, svc.Recorder, "users.unlock"), adminHandler.UnlockUser)
}

// accessAuthMiddleware validates access tokens and loads the user into context.
func accessAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAccessToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Locked() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account locked"})
			return
		}

		c.Set("user", &user)
		c.Next()
	}
}

// requirePermission enforces one named permission for the route. Denials
// share a single response shape carrying the attempted permission.
func requirePermission(rbacSvc *rbac.Service, recorder *audit.Recorder, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get("user")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		user, ok := value.(*models.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		allowed, errCheck := rbacSvc.Can(c.Request.Context(), user, permission)
		if errCheck != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !allowed {
			recorder.Record(c.Request.Context(), audit.EventAuthorizationDenied, &user.ID, false, map[string]any{
				"permission": permission,
			})
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               "permission denied",
				"required_permission": permission,
			})
			return
		}
		c.Next()
	}
}
