package config

// EnvPrefix namespaces envconfig lookups; explicit field tags are used as fallbacks.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "STOREFRONT_APP_ENV"
	EnvPort        = "STOREFRONT_APP_PORT"
	EnvLogLevel    = "STOREFRONT_LOG_LEVEL"
	EnvDBDSN       = "STOREFRONT_DB_DSN"
	EnvDBHost      = "STOREFRONT_DB_HOST"
	EnvDBUser      = "STOREFRONT_DB_USER"
	EnvDBPassword  = "STOREFRONT_DB_PASSWORD"
	EnvDBName      = "STOREFRONT_DB_NAME"
	EnvRedisURL    = "STOREFRONT_REDIS_URL"
	EnvCartTTL     = "STOREFRONT_CART_TTL"
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer   = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins  = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvGCSBucket   = "STOREFRONT_GCS_BUCKET_NAME"
	EnvStripeKey   = "STOREFRONT_STRIPE_API_KEY"
	EnvStripeEnv   = "STOREFRONT_STRIPE_ENV"
	EnvStripeCurr  = "STOREFRONT_STRIPE_CURRENCY"
	EnvMemoryCart  = "STOREFRONT_MEMORY_CART"
	EnvSuccessURL  = "STOREFRONT_CHECKOUT_SUCCESS_URL"
	EnvAdminEmail  = "STOREFRONT_ADMIN_EMAIL"
	EnvAdminPWHash = "STOREFRONT_ADMIN_PASSWORD_HASH"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
