package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Drivers de persistencia soportados.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

type Config struct {
	HTTPPort string `yaml:"http_port"`
	LogLevel string `yaml:"log_level"`

	DBDriver    string `yaml:"db_driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDB     string `yaml:"mongo_db"`

	RedisAddr string        `yaml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	UseKafka     bool          `yaml:"use_kafka"`
	KafkaBrokers []string      `yaml:"kafka_brokers"`
	KafkaGroupID string        `yaml:"kafka_group_id"`
	OutboxPeriod time.Duration `yaml:"outbox_period"`
	OutboxLimit  int           `yaml:"outbox_limit"`

	ClickHouseAddr string `yaml:"clickhouse_addr"`
	ClickHouseDB   string `yaml:"clickhouse_db"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`
	// JWTSecretGenerated indica que no se configuró secreto y se generó uno efímero.
	JWTSecretGenerated bool `yaml:"-"`

	CORSOrigins []string `yaml:"cors_origins"`

	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_exporter_otlp_endpoint"`
	OTelServiceName string `yaml:"otel_service_name"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8080",
		LogLevel:        "info",
		DBDriver:        DriverSQLite,
		SQLitePath:      "./pomotasks.db",
		MongoDB:         "pomotasks",
		CacheTTL:        5 * time.Minute,
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaGroupID:    "pomotasks",
		OutboxPeriod:    1 * time.Second,
		OutboxLimit:     10,
		ClickHouseDB:    "default",
		JWTTTL:          24 * time.Hour,
		CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		OTelServiceName: "pomotasks",
	}
}

// LoadConfig aplica, por este orden: valores por defecto, el fichero YAML de
// CONFIG_FILE (si existe) y las variables de entorno.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		cfg.JWTSecretGenerated = true
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.HTTPPort, "HTTP_PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDB, "MONGO_DB")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.KafkaGroupID, "KAFKA_GROUP_ID")
	setString(&cfg.ClickHouseAddr, "CLICKHOUSE_ADDR")
	setString(&cfg.ClickHouseDB, "CLICKHOUSE_DB")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.OTelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTelServiceName, "OTEL_SERVICE_NAME")
	setList(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	setList(&cfg.CORSOrigins, "CORS_ORIGINS")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.CacheTTL, "CACHE_TTL"},
		{&cfg.OutboxPeriod, "OUTBOX_PERIOD"},
		{&cfg.JWTTTL, "JWT_TTL"},
	} {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}

	if err := setBool(&cfg.UseKafka, "USE_KAFKA"); err != nil {
		return err
	}
	if err := setBool(&cfg.OTelEnabled, "OTEL_ENABLED"); err != nil {
		return err
	}
	return setInt(&cfg.OutboxLimit, "OUTBOX_LIMIT")
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	case DriverMongoDB:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when DB_DRIVER=%s", DriverMongoDB)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.OutboxPeriod <= 0 {
		return fmt.Errorf("OUTBOX_PERIOD must be positive")
	}
	if c.OutboxLimit <= 0 {
		return fmt.Errorf("OUTBOX_LIMIT must be positive")
	}
	if c.UseKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when USE_KAFKA is set")
	}
	return nil
}

// ---------- Helpers de entorno ----------

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
