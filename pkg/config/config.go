package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Payments      PaymentsConfig
	Inventory     InventoryConfig
	Seed          SeedConfig
	CORS          CORSConfig
	Tracing       TracingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRESHMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FRESHMARKET_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FRESHMARKET_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FRESHMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHMARKET_DB_DSN"`
	Driver string `envconfig:"FRESHMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FRESHMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"FRESHMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FRESHMARKET_DB_USER"`
	LegacyPassword string `envconfig:"FRESHMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"FRESHMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"FRESHMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"FRESHMARKET_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// NormalizedDriver returns the lower-cased driver name, defaulting to postgres.
func (db DBConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		return DriverPostgres
	}
	return driver
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FRESHMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"FRESHMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FRESHMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FRESHMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FRESHMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FRESHMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FRESHMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FRESHMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FRESHMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FRESHMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FRESHMARKET_ARGON_KEY_LEN" default:"32"`
	TempLength       int `envconfig:"FRESHMARKET_TEMP_PASSWORD_LENGTH" default:"12"`
}

type AuthRateLimitConfig struct {
	LoginWindow         time.Duration `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit     int           `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit        int           `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow        time.Duration `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit    int           `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit       int           `envconfig:"FRESHMARKET_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHMARKET_AUTO_MIGRATE" default:"false"`
	AutoSeed    bool `envconfig:"FRESHMARKET_AUTO_SEED" default:"false"`
}

// PaymentsConfig carries the gateway credentials. An empty key pair disables the
// gateway adapter; test payments are then the only way to create online orders.
type PaymentsConfig struct {
	KeyID             string        `envconfig:"FRESHMARKET_RAZORPAY_KEY_ID"`
	KeySecret         string        `envconfig:"FRESHMARKET_RAZORPAY_KEY_SECRET"`
	WebhookSecret     string        `envconfig:"FRESHMARKET_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL           string        `envconfig:"FRESHMARKET_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Currency          string        `envconfig:"FRESHMARKET_PAYMENT_CURRENCY" default:"INR"`
	GatewayTimeout    time.Duration `envconfig:"FRESHMARKET_PAYMENT_GATEWAY_TIMEOUT" default:"10s"`
	AllowTestPayments bool          `envconfig:"FRESHMARKET_ALLOW_TEST_PAYMENTS" default:"false"`
	WebhookDedupeTTL  time.Duration `envconfig:"FRESHMARKET_WEBHOOK_DEDUPE_TTL" default:"72h"`

	// UPI collect intents shown as a QR code at checkout.
	UPIPayeeVPA  string `envconfig:"FRESHMARKET_UPI_PAYEE_VPA" default:"freshmarket@paytm"`
	UPIPayeeName string `envconfig:"FRESHMARKET_UPI_PAYEE_NAME" default:"FreshMarket"`
	UPIQRBaseURL string `envconfig:"FRESHMARKET_UPI_QR_BASE_URL" default:"https://api.qrserver.com/v1/create-qr-code/?size=300x300&data="`
}

// GatewayEnabled reports whether enough credentials exist to call the gateway.
func (p PaymentsConfig) GatewayEnabled() bool {
	return strings.TrimSpace(p.KeyID) != "" && strings.TrimSpace(p.KeySecret) != ""
}

// NormalizedCurrency returns the upper-cased ISO currency, defaulting to INR.
func (p PaymentsConfig) NormalizedCurrency() string {
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		return "INR"
	}
	return currency
}

type InventoryConfig struct {
	LowStockThreshold    int  `envconfig:"FRESHMARKET_LOW_STOCK_THRESHOLD" default:"10"`
	CheckoutReserveStock bool `envconfig:"FRESHMARKET_CHECKOUT_RESERVE_STOCK" default:"false"`
}

type SeedConfig struct {
	AdminEmail    string `envconfig:"FRESHMARKET_ADMIN_EMAIL" default:"admin@freshmarket.com"`
	AdminPassword string `envconfig:"FRESHMARKET_ADMIN_PASSWORD" default:"admin123"`
	DemoUsers     bool   `envconfig:"FRESHMARKET_SEED_DEMO_USERS" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FRESHMARKET_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type TracingConfig struct {
	ServiceName string `envconfig:"FRESHMARKET_TRACING_SERVICE_NAME" default:"freshmarket-api"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.NormalizedDriver() == DriverSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	if db.NormalizedDriver() == DriverMySQL {
		db.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.LegacyUser, db.LegacyPassword, db.LegacyHost, db.LegacyPort, db.LegacyName)
		return nil
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
