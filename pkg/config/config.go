package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Stream    StreamConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Sources   SourcesConfig
	Audio     AudioConfig
	SMTP      SMTPConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	TopicAlerts   string
	GroupEmail    string
	GroupHistory  string
	NumPartitions int
}

// StreamConfig configures the TCP countdown stream for display boards
type StreamConfig struct {
	Port              int
	MaxConnections    int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
	WriteTimeout      time.Duration
}

type HTTPConfig struct {
	Host             string
	Port             int
	CORSAllowOrigins []string
}

// Addr returns the listen address of the HTTP API
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type SchedulerConfig struct {
	TickInterval   time.Duration
	RefreshTime    string
	FetchTimeout   time.Duration
	FireGrace      time.Duration
	DispatchBuffer int
	DefaultCity    string
}

type SourcesConfig struct {
	AladhanURL        string
	Method            int
	NominatimURL      string
	NominatimLanguage string
	QuranURL          string
	UserAgent         string
	RequestsPerMinute int
	HTTPTimeout       time.Duration
}

// AudioConfig selects the command used to play alert sounds.
// The sound reference is appended as the last argument.
type AudioConfig struct {
	Command      string
	Args         []string
	DefaultSound string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Environment string
	Level       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "prayer_user"),
			Password: getEnv("DB_PASSWORD", "prayer_pass"),
			DBName:   getEnv("DB_NAME", "prayer_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "prayer.alerts"),
			GroupEmail:    getEnv("KAFKA_GROUP_EMAIL", "prayer-notification"),
			GroupHistory:  getEnv("KAFKA_GROUP_HISTORY", "prayer-alert-history"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
		},
		Stream: StreamConfig{
			Port:              getEnvAsInt("STREAM_PORT", 8081),
			MaxConnections:    getEnvAsInt("STREAM_MAX_CONNECTIONS", 1000),
			IdentifyTimeout:   getEnvAsDuration("STREAM_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("STREAM_INACTIVITY_TIMEOUT", 2*time.Minute),
			WriteTimeout:      getEnvAsDuration("STREAM_WRITE_TIMEOUT", 2*time.Second),
		},
		HTTP: HTTPConfig{
			Host:             getEnv("HTTP_HOST", "0.0.0.0"),
			Port:             getEnvAsInt("HTTP_PORT", 8080),
			CORSAllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Scheduler: SchedulerConfig{
			TickInterval:   getEnvAsDuration("SCHEDULER_TICK_INTERVAL", time.Second),
			RefreshTime:    getEnv("SCHEDULER_REFRESH_TIME", "00:05"),
			FetchTimeout:   getEnvAsDuration("SCHEDULER_FETCH_TIMEOUT", 15*time.Second),
			FireGrace:      getEnvAsDuration("SCHEDULER_FIRE_GRACE", 5*time.Second),
			DispatchBuffer: getEnvAsInt("SCHEDULER_DISPATCH_BUFFER", 16),
			DefaultCity:    getEnv("SCHEDULER_DEFAULT_CITY", "Makkah"),
		},
		Sources: SourcesConfig{
			AladhanURL:        getEnv("ALADHAN_URL", "https://api.aladhan.com/v1"),
			Method:            getEnvAsInt("ALADHAN_METHOD", 2),
			NominatimURL:      getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			NominatimLanguage: getEnv("NOMINATIM_LANGUAGE", "ar"),
			QuranURL:          getEnv("QURAN_URL", "https://api.alquran.cloud/v1"),
			UserAgent:         getEnv("SOURCES_USER_AGENT", "prayer-server/1.0"),
			RequestsPerMinute: getEnvAsInt("SOURCES_REQUESTS_PER_MINUTE", 60),
			HTTPTimeout:       getEnvAsDuration("SOURCES_HTTP_TIMEOUT", 10*time.Second),
		},
		Audio: AudioConfig{
			Command:      getEnv("AUDIO_COMMAND", ""),
			Args:         getEnvAsList("AUDIO_ARGS", nil),
			DefaultSound: getEnv("AUDIO_DEFAULT_SOUND", "sounds/adhan_makkah.mp3"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "prayer-server@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		Log: LogConfig{
			Environment: getEnv("ENVIRONMENT", "production"),
			Level:       getEnv("LOG_LEVEL", ""),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if _, err := ParseTimeOfDay(c.Scheduler.RefreshTime); err != nil {
		return fmt.Errorf("invalid SCHEDULER_REFRESH_TIME: %w", err)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("SCHEDULER_TICK_INTERVAL must be positive")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	return nil
}

// ParseTimeOfDay parses an "HH:MM" value into an offset from midnight
func ParseTimeOfDay(s string) (time.Duration, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
