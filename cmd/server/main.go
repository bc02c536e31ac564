package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/auth"
	"github.com/mikefreno/freno-dev-sub000/internal/config"
	"github.com/mikefreno/freno-dev-sub000/internal/database"
	"github.com/mikefreno/freno-dev-sub000/internal/email"
	"github.com/mikefreno/freno-dev-sub000/internal/handler"
	"github.com/mikefreno/freno-dev-sub000/internal/oauth"
	"github.com/mikefreno/freno-dev-sub000/internal/ratelimit"
	"github.com/mikefreno/freno-dev-sub000/internal/repository"
	"github.com/mikefreno/freno-dev-sub000/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Nil when Redis is unreachable; the limiter then degrades to its
	// per-process fallback windows.
	var rlStore ratelimit.Store
	if rdb := config.NewRedisClient(); rdb != nil {
		rlStore = ratelimit.NewRedisStore(rdb)
	} else {
		log.Printf("redis unavailable, rate limiting degrades to per-process windows")
	}
	var rules map[string]ratelimit.Rule
	if rlCfg.Enabled {
		rules = rlCfg.Rules
	}
	limiter := ratelimit.New(rlStore, rules, rlCfg.Prefix)

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	tokens := repository.NewTokenRepo(db)
	audit := auth.NewRecorder(repository.NewAuditRepo(db))

	verifier, err := auth.NewPasswordVerifier(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("password verifier: %v", err)
	}

	engine := auth.NewEngine(sessions, audit, auth.EngineConfig{
		SessionTTL:   cfg.SessionTTL,
		RememberTTL:  cfg.RememberTTL,
		RotationMax:  cfg.RotationLimit,
		FamilyMaxAge: cfg.FamilyMaxAge,
	})

	a := &handler.AuthHandler{
		Cfg:      cfg,
		Users:    users,
		Engine:   engine,
		Verifier: verifier,
		Lockout:  auth.NewLockout(users, cfg.LockoutThreshold, cfg.LockoutDuration),
		Tokens:   auth.NewTokenService(tokens, cfg.ResetTokenTTL, cfg.VerifyTokenTTL),
		Limiter:  limiter,
		Audit:    audit,
		Mail:     email.NewQueuePublisher(),
		OAuth: oauth.NewClient(map[string]oauth.ProviderConfig{
			oauth.ProviderGitHub: {
				ClientID:     cfg.OAuthGitHubID,
				ClientSecret: cfg.OAuthGitHubSecret,
				RedirectURL:  cfg.OAuthRedirectURL,
				TokenURL:     "https://github.com/login/oauth/access_token",
				UserURL:      "https://api.github.com/user",
			},
			oauth.ProviderGoogle: {
				ClientID:     cfg.OAuthGoogleID,
				ClientSecret: cfg.OAuthGoogleSecret,
				RedirectURL:  cfg.OAuthRedirectURL,
				TokenURL:     "https://oauth2.googleapis.com/token",
				UserURL:      "https://www.googleapis.com/oauth2/v2/userinfo",
			},
		}),
		Sweeper: auth.NewSweeper(sessions, tokens, cfg.SweepGrace, cfg.SweepRetention, cfg.SweepMinEvery),
	}

	// Delivery worker for queued email jobs; survives broker outages.
	go func() {
		if err := email.StartConsumer(); err != nil {
			log.Printf("email-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, a, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
