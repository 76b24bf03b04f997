package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir is the absolute path to the directory served at /static/.
	// Set via STATIC_DIR (relative paths are resolved against the process working directory at startup).
	StaticDir string
	// CORSAllowedOrigins enables CORS for the listed origins. Empty disables it.
	CORSAllowedOrigins []string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool

	Serial SerialConfig
	MQTT   MQTTConfig
	Influx InfluxConfig
	Engine EngineConfig
}

// SerialConfig describes the psychrometer attached over a serial line.
// An empty Port disables the reader.
type SerialConfig struct {
	Port              string
	Baud              int
	ReconnectInterval time.Duration
}

func (c SerialConfig) Enabled() bool { return c.Port != "" }

// MQTTConfig describes the broker remote sensors publish readings to.
// An empty Broker disables the subscriber.
type MQTTConfig struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func (c MQTTConfig) Enabled() bool { return c.Broker != "" }

// InfluxConfig describes the optional time-series sink. An empty URL disables it.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Enabled() bool { return c.URL != "" }

type EngineConfig struct {
	MinTempC      float64
	MaxTempC      float64
	MaxIterations int
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Variables already set win, and a
// missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := envString("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envString("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	staticDir := envString("STATIC_DIR", "static")
	staticDir, err = filepath.Abs(staticDir)
	if err != nil {
		return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           envString("HTTP_ADDR", ":8080"),
		StaticDir:          staticDir,
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Driver:             envString("DB_DRIVER", "sqlite3"),
		DSN:                envString("DB_DSN", ""),
		Path:               envString("SQLITE_PATH", "data/measurements.db"),
		Serial: SerialConfig{
			Port: envString("SERIAL_PORT", ""),
		},
		MQTT: MQTTConfig{
			Broker:   envString("MQTT_BROKER", ""),
			ClientID: envString("MQTT_CLIENT_ID", "psychro-dash"),
			Topic:    envString("MQTT_TOPIC", "psychro/+/reading"),
		},
		Influx: InfluxConfig{
			URL:    envString("INFLUXDB_URL", ""),
			Token:  envString("INFLUXDB_TOKEN", ""),
			Org:    envString("INFLUXDB_ORG", ""),
			Bucket: envString("INFLUXDB_BUCKET", "psychrometrics"),
		},
	}

	if cfg.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", 0); err != nil {
		return Config{}, err
	}
	if cfg.LogQueries, err = envBool("SQLITE_LOG_QUERIES", false); err != nil {
		return Config{}, err
	}

	if cfg.Serial.Baud, err = envInt("SERIAL_BAUD", 9600); err != nil {
		return Config{}, err
	}
	if cfg.Serial.ReconnectInterval, err = envDuration("SERIAL_RECONNECT_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MQTT.Port, err = envInt("MQTT_PORT", 1883); err != nil {
		return Config{}, err
	}

	if cfg.Engine.MinTempC, err = envFloat("PSYCHRO_MIN_TEMP_C", -50); err != nil {
		return Config{}, err
	}
	if cfg.Engine.MaxTempC, err = envFloat("PSYCHRO_MAX_TEMP_C", 100); err != nil {
		return Config{}, err
	}
	if cfg.Engine.MinTempC >= cfg.Engine.MaxTempC {
		return Config{}, fmt.Errorf("invalid PSYCHRO_MIN_TEMP_C/PSYCHRO_MAX_TEMP_C: %g >= %g",
			cfg.Engine.MinTempC, cfg.Engine.MaxTempC)
	}
	if cfg.Engine.MaxIterations, err = envInt("PSYCHRO_MAX_ITERATIONS", 100); err != nil {
		return Config{}, err
	}
	if cfg.Engine.MaxIterations <= 0 {
		return Config{}, fmt.Errorf("invalid PSYCHRO_MAX_ITERATIONS %d (must be positive)", cfg.Engine.MaxIterations)
	}

	if cfg.Influx.Enabled() && (cfg.Influx.Token == "" || cfg.Influx.Org == "") {
		return Config{}, errors.New("INFLUXDB_URL is set but INFLUXDB_TOKEN or INFLUXDB_ORG is missing")
	}

	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
