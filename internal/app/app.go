// Package app assembles the auth engine and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/antarr/jordan-sub000/internal/audit"
	"github.com/antarr/jordan-sub000/internal/authn"
	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/antarr/jordan-sub000/internal/db"
	"github.com/antarr/jordan-sub000/internal/http/api"
	"github.com/antarr/jordan-sub000/internal/lockout"
	"github.com/antarr/jordan-sub000/internal/notify"
	"github.com/antarr/jordan-sub000/internal/rbac"
	"github.com/antarr/jordan-sub000/internal/security"
	"github.com/antarr/jordan-sub000/internal/throttle"
	"github.com/antarr/jordan-sub000/internal/twofactor"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the auth API with database-backed components. It blocks
// until ctx is cancelled, then drains in-flight requests.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	webAuthn, errWA := security.NewWebAuthn(cfg.WebAuthn)
	if errWA != nil {
		return errWA
	}

	var limiter authn.CodeRequestLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if errPing := client.Ping(ctx).Err(); errPing != nil {
			return errPing
		}
		limiter = throttle.NewCodeLimiter(client, throttle.DefaultWindow, throttle.DefaultMaxRequests)
	}

	recorder := audit.NewRecorder(conn)
	notifier := notify.Noop{}
	policy := lockout.NewPolicy(conn, cfg.Lockout, notifier)
	verifier := authn.NewVerifier(conn)
	orch := authn.NewOrchestrator(conn, verifier, policy, recorder, notifier, limiter, cfg.JWT)
	rbacSvc := rbac.NewService(conn)
	twoFactorSvc := twofactor.NewService(conn, webAuthn, recorder, time.Duration(cfg.WebAuthn.ChallengeTTL))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.RegisterRoutes(engine, api.Services{
		DB:        conn,
		JWT:       cfg.JWT,
		Orch:      orch,
		Policy:    policy,
		RBAC:      rbacSvc,
		TwoFactor: twoFactorSvc,
		Recorder:  recorder,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
