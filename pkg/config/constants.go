package config

// EnvPrefix is handed to envconfig; every field carries its full key explicitly.
const EnvPrefix = "FRESHMARKET"

const (
	AppEnvDev        = "dev"
	AppEnvProd       = "prod"
	AppEnvProduction = "production"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:freshmarket.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv            = "FRESHMARKET_APP_ENV"
	EnvPort              = "FRESHMARKET_APP_PORT"
	EnvLogLevel          = "FRESHMARKET_LOG_LEVEL"
	EnvDBDriver          = "FRESHMARKET_DB_DRIVER"
	EnvDBDSN             = "FRESHMARKET_DB_DSN"
	EnvDBHost            = "FRESHMARKET_DB_HOST"
	EnvDBUser            = "FRESHMARKET_DB_USER"
	EnvDBName            = "FRESHMARKET_DB_NAME"
	EnvRedisURL          = "FRESHMARKET_REDIS_URL"
	EnvJWTSecret         = "FRESHMARKET_JWT_SECRET"
	EnvJWTIssuer         = "FRESHMARKET_JWT_ISSUER"
	EnvJWTExpMins        = "FRESHMARKET_JWT_EXPIRATION_MINUTES"
	EnvRazorpayKeyID     = "FRESHMARKET_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "FRESHMARKET_RAZORPAY_KEY_SECRET"
	EnvAllowTestPayments = "FRESHMARKET_ALLOW_TEST_PAYMENTS"
	EnvCORSOrigins       = "FRESHMARKET_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
