package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App            AppConfig
	DB             DBConfig
	JWT            JWTConfig
	HTTP           HTTPConfig
	Redis          RedisConfig
	Idempotency    IdempotencyConfig
	Reconciliation ReconciliationConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
// Driver "memory" arranca con almacenamiento en memoria (solo desarrollo).
type DBConfig struct {
	Driver      string
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig conexión a Redis. Address vacío deshabilita Redis.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Address != "" }

// IdempotencyConfig backend y ventanas del guardián de idempotencia.
type IdempotencyConfig struct {
	Backend    string // postgres | redis | memory
	TTL        time.Duration
	StaleAfter time.Duration
}

// ReconciliationConfig umbrales de auto-corrección y tiempos de las transacciones de corrección.
type ReconciliationConfig struct {
	MaxVariancePercent decimal.Decimal
	MaxVarianceUnits   decimal.Decimal
	MaxVarianceValue   decimal.Decimal
	BulkTimeout        time.Duration
	SingleTimeout      time.Duration
	BatchLockTTL       time.Duration
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, JWT_SECRET, RECON_*, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo .env o config.env; se ignora si no existe.
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	maxPercent, err := getDecimal(v, "RECON_MAX_VARIANCE_PERCENT")
	if err != nil {
		return nil, err
	}
	maxUnits, err := getDecimal(v, "RECON_MAX_VARIANCE_UNITS")
	if err != nil {
		return nil, err
	}
	maxValue, err := getDecimal(v, "RECON_MAX_VARIANCE_VALUE")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			Driver:      strings.ToLower(v.GetString("DB_DRIVER")),
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        getInt(v, "DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES"),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: getInt(v, "HTTP_PORT"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("REDIS_ADDRESS"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       getInt(v, "REDIS_DB"),
		},
		Idempotency: IdempotencyConfig{
			Backend:    strings.ToLower(v.GetString("IDEMPOTENCY_BACKEND")),
			TTL:        time.Duration(getInt(v, "IDEMPOTENCY_TTL_HOURS")) * time.Hour,
			StaleAfter: time.Duration(getInt(v, "IDEMPOTENCY_STALE_MINUTES")) * time.Minute,
		},
		Reconciliation: ReconciliationConfig{
			MaxVariancePercent: maxPercent,
			MaxVarianceUnits:   maxUnits,
			MaxVarianceValue:   maxValue,
			BulkTimeout:        time.Duration(getInt(v, "RECON_BULK_TIMEOUT_SECONDS")) * time.Second,
			SingleTimeout:      time.Duration(getInt(v, "RECON_SINGLE_TIMEOUT_SECONDS")) * time.Second,
			BatchLockTTL:       time.Duration(getInt(v, "RECON_BATCH_LOCK_SECONDS")) * time.Second,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "inventario-ledger")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "inventario_ledger")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_EXPIRATION_MINUTES", 60)
	v.SetDefault("JWT_ISSUER", "inventario-ledger")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("IDEMPOTENCY_BACKEND", "postgres")
	v.SetDefault("IDEMPOTENCY_TTL_HOURS", 24)
	v.SetDefault("IDEMPOTENCY_STALE_MINUTES", 5)

	v.SetDefault("RECON_MAX_VARIANCE_PERCENT", "5")
	v.SetDefault("RECON_MAX_VARIANCE_UNITS", "10")
	v.SetDefault("RECON_MAX_VARIANCE_VALUE", "100")
	v.SetDefault("RECON_BULK_TIMEOUT_SECONDS", 120)
	v.SetDefault("RECON_SINGLE_TIMEOUT_SECONDS", 15)
	v.SetDefault("RECON_BATCH_LOCK_SECONDS", 150)
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: DB_DRIVER inválido %q", c.DB.Driver)
	}
	switch c.Idempotency.Backend {
	case "postgres", "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("config: IDEMPOTENCY_BACKEND=redis requiere REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("config: IDEMPOTENCY_BACKEND inválido %q", c.Idempotency.Backend)
	}
	if c.Idempotency.Backend == "postgres" && c.DB.Driver == "memory" {
		return fmt.Errorf("config: IDEMPOTENCY_BACKEND=postgres requiere DB_DRIVER=postgres")
	}
	if c.Reconciliation.BulkTimeout <= 0 || c.Reconciliation.SingleTimeout <= 0 {
		return fmt.Errorf("config: los timeouts de conciliación deben ser positivos")
	}
	return nil
}

func getInt(v *viper.Viper, key string) int {
	switch val := v.Get(key).(type) {
	case int:
		return val
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(val))
		return n
	default:
		return v.GetInt(key)
	}
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s inválido: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: %s no puede ser negativo", key)
	}
	return d, nil
}
