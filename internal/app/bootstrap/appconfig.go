// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration: WAFFLE's CoreConfig
// handles framework concerns like ports, TLS, logging level and CORS
// fundamentals, while everything specific to this application lives
// here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Token signing
	JWTSecret string // HMAC secret for API tokens (must be strong in production)

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// Stripe configuration
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceBasic    string // price id for the basic plan
	StripePricePro      string // price id for the pro plan
	StripePriceBusiness string // price id for the business plan

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@projhub.dev)

	// Avatar storage configuration. An empty path keeps avatars inline
	// on the user document.
	StorageLocalPath string // local path for uploaded avatars (e.g., "./uploads/avatars")
	StorageLocalURL  string // URL prefix the files are served under (e.g., "/files/avatars")

	// URLs used when building links
	BaseURL     string // this API's public base URL (OAuth callback host)
	FrontendURL string // SPA origin (email links, OAuth redirects, CORS)

	// Branding
	SiteName string // display name used in outgoing email
}
