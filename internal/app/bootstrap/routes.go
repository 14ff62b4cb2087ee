// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	authfeature "github.com/carverdev/projhub/internal/app/features/auth"
	authgooglefeature "github.com/carverdev/projhub/internal/app/features/authgoogle"
	companyfeature "github.com/carverdev/projhub/internal/app/features/company"
	directoryfeature "github.com/carverdev/projhub/internal/app/features/directory"
	healthfeature "github.com/carverdev/projhub/internal/app/features/health"
	passwordfeature "github.com/carverdev/projhub/internal/app/features/password"
	profilefeature "github.com/carverdev/projhub/internal/app/features/profile"
	projectsfeature "github.com/carverdev/projhub/internal/app/features/projects"
	tasksfeature "github.com/carverdev/projhub/internal/app/features/tasks"
	webhookfeature "github.com/carverdev/projhub/internal/app/features/webhook"
	companystore "github.com/carverdev/projhub/internal/app/store/companies"
	"github.com/carverdev/projhub/internal/app/store/oauthstate"
	otpstore "github.com/carverdev/projhub/internal/app/store/otps"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
	projectstore "github.com/carverdev/projhub/internal/app/store/projects"
	taskstore "github.com/carverdev/projhub/internal/app/store/tasks"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/billing"
	"github.com/carverdev/projhub/internal/app/system/filestore"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/ratelimit"
	"github.com/carverdev/projhub/internal/domain/models"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. ProjHub builds the stores, the
// token manager and the outbound clients here, then mounts one feature
// router per API area. Auth is a global middleware: it resolves a
// bearer token into the current user when one is present and leaves
// the request anonymous otherwise; the per-feature routers decide what
// each endpoint requires.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	users := userstore.New(db)
	companies := companystore.New(db)
	projects := projectstore.New(db)
	taskItems := taskstore.New(db)
	otps := otpstore.New(db)
	pending := pendingstore.New(db)
	oauthStates := oauthstate.New(db)

	tokens, err := auth.NewManager(appCfg.JWTSecret, logger)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}

	smtp := mailer.NewSMTP(
		appCfg.MailSMTPHost, appCfg.MailSMTPPort,
		appCfg.MailSMTPUser, appCfg.MailSMTPPass,
		appCfg.MailFrom, logger)

	loginLimiter := ratelimit.NewLoginLimiter()

	// Billing stays nil without credentials; the company feature answers
	// 503 on payment endpoints in that case.
	var gateway billing.Gateway
	if appCfg.StripeSecretKey != "" {
		sg, err := billing.NewStripeGateway(appCfg.StripeSecretKey, map[models.PlanID]string{
			models.PlanBasic:    appCfg.StripePriceBasic,
			models.PlanPro:      appCfg.StripePricePro,
			models.PlanBusiness: appCfg.StripePriceBusiness,
		}, logger)
		if err != nil {
			logger.Error("stripe gateway init failed", zap.Error(err))
			return nil, err
		}
		gateway = sg
	} else {
		logger.Warn("stripe_secret_key not set; billing endpoints disabled")
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{appCfg.FrontendURL},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"x-auth-token",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global auth middleware: resolves the current user into context
	// when a valid token is presented.
	r.Use(auth.Authenticate(tokens, users, logger))

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/api/health", healthfeature.Routes(healthHandler))

	// Authentication: email/password, signup with OTP verification, and
	// Google OAuth.
	authHandler := &authfeature.Handler{
		Users:    users,
		Pending:  pending,
		OTPs:     otps,
		Mailer:   smtp,
		Tokens:   tokens,
		Limiter:  loginLimiter,
		SiteName: appCfg.SiteName,
		Log:      logger,
	}
	r.Mount("/api/auth", authfeature.Routes(authHandler))

	googleHandler := &authgooglefeature.Handler{
		Users:        users,
		StateStore:   oauthStates,
		Tokens:       tokens,
		Log:          logger,
		ClientID:     appCfg.GoogleClientID,
		ClientSecret: appCfg.GoogleClientSecret,
		RedirectURL:  appCfg.BaseURL + "/api/auth/google/callback",
		FrontendURL:  appCfg.FrontendURL,
	}
	r.Mount("/api/auth/google", authgooglefeature.Routes(googleHandler))

	passwordHandler := &passwordfeature.Handler{
		Users:       users,
		Mailer:      smtp,
		Limiter:     loginLimiter,
		SiteName:    appCfg.SiteName,
		FrontendURL: appCfg.FrontendURL,
		Log:         logger,
	}
	r.Mount("/api/password", passwordfeature.Routes(passwordHandler))

	// Directory: managed accounts per role, invitations by email.
	directoryHandler := &directoryfeature.Handler{
		Users:       users,
		Mailer:      smtp,
		SiteName:    appCfg.SiteName,
		FrontendURL: appCfg.FrontendURL,
		Log:         logger,
	}
	r.Mount("/api/directory", directoryfeature.Routes(directoryHandler))

	// Company onboarding, subscription management and admin oversight.
	companyHandler := &companyfeature.Handler{
		Companies: companies,
		Users:     users,
		Billing:   gateway,
		Log:       logger,
	}
	r.Mount("/api/companies", companyfeature.Routes(companyHandler))

	projectsHandler := &projectsfeature.Handler{
		Projects: projects,
		Tasks:    taskItems,
		Users:    users,
		Log:      logger,
	}
	r.Mount("/api/projects", projectsfeature.Routes(projectsHandler))

	tasksHandler := &tasksfeature.Handler{
		Tasks:    taskItems,
		Projects: projects,
		Users:    users,
		Log:      logger,
	}
	r.Mount("/api/tasks", tasksfeature.Routes(tasksHandler))

	// Avatars go to local disk when a storage path is configured and
	// stay inline on the user document otherwise.
	var avatarStorage profilefeature.Storage
	if appCfg.StorageLocalPath != "" {
		avatarStorage = filestore.NewLocal(appCfg.StorageLocalPath, appCfg.StorageLocalURL)
		prefix := strings.TrimRight(appCfg.StorageLocalURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/",
			http.FileServer(http.Dir(appCfg.StorageLocalPath))))
	}

	profileHandler := &profilefeature.Handler{
		Users:   users,
		Storage: avatarStorage,
		Log:     logger,
	}
	r.Mount("/api/profile", profilefeature.Routes(profileHandler))

	// Provider webhooks authenticate by signature, not by token.
	if appCfg.StripeWebhookSecret != "" {
		webhookHandler := &webhookfeature.Handler{
			Companies: companies,
			Billing:   gateway,
			Secret:    appCfg.StripeWebhookSecret,
			Log:       logger,
		}
		r.Mount("/api/webhooks", webhookfeature.Routes(webhookHandler))
	} else {
		logger.Warn("stripe_webhook_secret not set; webhook endpoint disabled")
	}

	return r, nil
}
