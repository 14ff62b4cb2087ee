// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/system/timeouts"
)

// appConfigKeys defines the configuration keys for ProjHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: PROJHUB_MONGO_URI, PROJHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "projhub", Desc: "MongoDB database name"},

	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Token signing secret (must be strong in production)"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Stripe configuration
	{Name: "stripe_secret_key", Default: "", Desc: "Stripe secret API key"},
	{Name: "stripe_webhook_secret", Default: "", Desc: "Stripe webhook signing secret"},
	{Name: "stripe_price_basic", Default: "", Desc: "Stripe price id for the basic plan"},
	{Name: "stripe_price_pro", Default: "", Desc: "Stripe price id for the pro plan"},
	{Name: "stripe_price_business", Default: "", Desc: "Stripe price id for the business plan"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@projhub.dev", Desc: "From email address"},

	// Avatar storage (empty path keeps avatars inline as data URLs)
	{Name: "storage_local_path", Default: "", Desc: "Local storage path for uploaded avatars"},
	{Name: "storage_local_url", Default: "/files/avatars", Desc: "URL prefix for serving stored avatars"},

	// URLs
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of this API"},
	{Name: "frontend_url", Default: "http://localhost:3000", Desc: "SPA origin used for email links and OAuth redirects"},

	// Branding
	{Name: "site_name", Default: "ProjHub", Desc: "Display name used in outgoing email"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, PROJHUB_* for app) and
// command-line flags, with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PROJHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		JWTSecret: appValues.String("jwt_secret"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		StripeSecretKey:     appValues.String("stripe_secret_key"),
		StripeWebhookSecret: appValues.String("stripe_webhook_secret"),
		StripePriceBasic:    appValues.String("stripe_price_basic"),
		StripePricePro:      appValues.String("stripe_price_pro"),
		StripePriceBusiness: appValues.String("stripe_price_business"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),

		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		BaseURL:     appValues.String("base_url"),
		FrontendURL: appValues.String("frontend_url"),

		SiteName: appValues.String("site_name"),
	}

	// Database operation timeouts can also be tuned through the
	// environment (PROJHUB_TIMEOUT_SHORT and friends).
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("database timeouts configured from environment", zap.Int("overrides", n))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// ProjHub validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect, and refuses a blank
// token secret.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}

	// Stripe keys may be absent in development; billing endpoints answer
	// 503 in that case. A webhook secret without an API key is a
	// misconfiguration worth failing on.
	if appCfg.StripeSecretKey == "" && appCfg.StripeWebhookSecret != "" {
		return fmt.Errorf("stripe_webhook_secret is set but stripe_secret_key is not")
	}

	return nil
}
