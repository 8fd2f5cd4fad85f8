package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration required by the api, worker and commsctl processes.
// Values come from the environment, optionally seeded from an env file (CONFIG_FILE or ./.env).
// No business logic should depend on raw environment variables.
type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Twilio        TwilioConfig
	Vonage        VonageConfig
	WhatsAppCloud WhatsAppCloudConfig
	AI            AIConfig
	Voice         VoiceConfig
	Credentials   CredentialsConfig
	Email         EmailConfig
	Kafka         KafkaConfig
	Telemetry     TelemetryConfig
	Queue         QueueConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// TwilioConfig is the environment fallback for telephony credentials and the
// credential source for the Twilio-backed notification providers.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	WhatsAppNumber    string
	ValidateSignature bool
	APIBaseURL        string
}

type VonageConfig struct {
	APIKey    string
	APISecret string
	From      string
}

type WhatsAppCloudConfig struct {
	AccessToken   string
	PhoneNumberID string
}

type AIConfig struct {
	APIKey      string
	RealtimeURL string
	Model       string
}

type VoiceConfig struct {
	PublicBaseURL      string
	MediaStreamURL     string
	RatePerMinuteCents int64
	PlaceCallTimeout   time.Duration
	OrgConcurrency     int
	DefaultVoice       string
}

type CredentialsConfig struct {
	EncryptionKey string
	CacheTTL      time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type KafkaConfig struct {
	Brokers         []string
	CallEventsTopic string
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

type QueueConfig struct {
	Prefix            string
	WorkerConcurrency int
	PollInterval      time.Duration
	// StalledAfter is how long a job may sit reserved before it is recovered; 0 uses the worker default.
	StalledAfter time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.SetDefault("TWILIO_API_BASE_URL", "https://api.twilio.com")
	v.SetDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime")
	v.SetDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview")
	v.SetDefault("VOICE_RATE_PER_MINUTE_CENTS", "10")
	v.SetDefault("VOICE_PLACE_CALL_TIMEOUT", "15s")
	v.SetDefault("VOICE_ORG_CONCURRENCY", "5")
	v.SetDefault("VOICE_DEFAULT_VOICE", "alloy")
	v.SetDefault("CREDENTIALS_CACHE_TTL", "60s")
	v.SetDefault("EMAIL_FROM", "no-reply@example.com")
	v.SetDefault("KAFKA_CALL_EVENTS_TOPIC", "voice-call-events")
	v.SetDefault("OTEL_SERVICE_NAME", "recruit-comms")
	v.SetDefault("QUEUE_PREFIX", "comms")
	v.SetDefault("WORKER_CONCURRENCY", "4")
	v.SetDefault("WORKER_POLL_INTERVAL", "1s")
	return v
}

func Load() (Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (Config, error) {
	c := Config{}
	var parseErrs []error

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }
	intOf := func(key string) int {
		n, err := mustInt(v, key)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		return n
	}
	optInt := func(key string) int {
		n, err := optionalInt(v, key)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		return n
	}

	c.App.Env = str("APP_ENV")
	c.App.Port = intOf("APP_PORT")

	c.DB.Host = str("DB_HOST")
	c.DB.Port = intOf("DB_PORT")
	c.DB.User = str("DB_USER")
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = str("DB_NAME")
	c.DB.SSLMode = str("DB_SSLMODE")

	c.Redis.Host = str("REDIS_HOST")
	c.Redis.Port = intOf("REDIS_PORT")
	c.Redis.Password = v.GetString("REDIS_PASSWORD")
	c.Redis.DB = optInt("REDIS_DB")

	c.Auth.JWTSecret = v.GetString("JWT_SECRET")
	c.Auth.JWTIssuer = str("JWT_ISSUER")
	c.Auth.JWTAudience = str("JWT_AUDIENCE")
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration(v, "JWT_ACCESS_TTL")

	c.Twilio.AccountSID = str("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = v.GetString("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = str("TWILIO_PHONE_NUMBER")
	c.Twilio.WhatsAppNumber = str("TWILIO_WHATSAPP_NUMBER")
	c.Twilio.ValidateSignature = v.GetBool("TWILIO_VALIDATE_SIGNATURE")
	c.Twilio.APIBaseURL = str("TWILIO_API_BASE_URL")

	c.Vonage.APIKey = str("VONAGE_API_KEY")
	c.Vonage.APISecret = v.GetString("VONAGE_API_SECRET")
	c.Vonage.From = str("VONAGE_FROM")

	c.WhatsAppCloud.AccessToken = v.GetString("WHATSAPP_CLOUD_TOKEN")
	c.WhatsAppCloud.PhoneNumberID = str("WHATSAPP_CLOUD_PHONE_NUMBER_ID")

	c.AI.APIKey = v.GetString("OPENAI_API_KEY")
	c.AI.RealtimeURL = str("OPENAI_REALTIME_URL")
	c.AI.Model = str("OPENAI_REALTIME_MODEL")

	c.Voice.PublicBaseURL = strings.TrimRight(str("VOICE_PUBLIC_BASE_URL"), "/")
	c.Voice.MediaStreamURL = str("VOICE_MEDIA_STREAM_URL")
	c.Voice.RatePerMinuteCents = int64(optInt("VOICE_RATE_PER_MINUTE_CENTS"))
	c.Voice.PlaceCallTimeout = mustDuration(v, "VOICE_PLACE_CALL_TIMEOUT")
	c.Voice.OrgConcurrency = optInt("VOICE_ORG_CONCURRENCY")
	c.Voice.DefaultVoice = str("VOICE_DEFAULT_VOICE")

	c.Credentials.EncryptionKey = v.GetString("CREDENTIALS_ENCRYPTION_KEY")
	c.Credentials.CacheTTL = mustDuration(v, "CREDENTIALS_CACHE_TTL")

	c.Email.ResendAPIKey = v.GetString("RESEND_API_KEY")
	c.Email.From = str("EMAIL_FROM")

	c.Kafka.Brokers = splitList(str("KAFKA_BROKERS"))
	c.Kafka.CallEventsTopic = str("KAFKA_CALL_EVENTS_TOPIC")

	c.Telemetry.OTLPEndpoint = str("OTEL_EXPORTER_OTLP_ENDPOINT")
	c.Telemetry.ServiceName = str("OTEL_SERVICE_NAME")

	c.Queue.Prefix = str("QUEUE_PREFIX")
	c.Queue.WorkerConcurrency = optInt("WORKER_CONCURRENCY")
	c.Queue.PollInterval = mustDuration(v, "WORKER_POLL_INTERVAL")
	c.Queue.StalledAfter = mustDuration(v, "WORKER_STALLED_AFTER")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL > 24*time.Hour {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must not exceed 24h"))
	}

	if c.Voice.PublicBaseURL != "" {
		if u, err := url.Parse(c.Voice.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("VOICE_PUBLIC_BASE_URL must be an absolute URL, got %q", c.Voice.PublicBaseURL))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("VOICE_PUBLIC_BASE_URL is required in production"))
	}
	if c.Voice.MediaStreamURL != "" && !strings.HasPrefix(c.Voice.MediaStreamURL, "wss://") && !strings.HasPrefix(c.Voice.MediaStreamURL, "ws://") {
		errs = append(errs, fmt.Errorf("VOICE_MEDIA_STREAM_URL must be a ws:// or wss:// URL, got %q", c.Voice.MediaStreamURL))
	}
	if c.Voice.RatePerMinuteCents < 0 {
		errs = append(errs, fmt.Errorf("VOICE_RATE_PER_MINUTE_CENTS must be >= 0, got %d", c.Voice.RatePerMinuteCents))
	}
	if c.Voice.OrgConcurrency < 0 {
		errs = append(errs, fmt.Errorf("VOICE_ORG_CONCURRENCY must be >= 0, got %d", c.Voice.OrgConcurrency))
	}

	if key := c.Credentials.EncryptionKey; key != "" && len(key) < 16 {
		errs = append(errs, errors.New("CREDENTIALS_ENCRYPTION_KEY must be at least 16 characters"))
	}

	if c.Queue.WorkerConcurrency < 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be >= 0, got %d", c.Queue.WorkerConcurrency))
	}

	return joinErrors(errs)
}

func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Voice.MediaStreamURL == "" && c.Voice.PublicBaseURL != "" {
		c.Voice.MediaStreamURL = wsURL(c.Voice.PublicBaseURL) + "/media-stream"
	}
	if c.Voice.PlaceCallTimeout <= 0 {
		c.Voice.PlaceCallTimeout = 15 * time.Second
	}
	if c.Credentials.CacheTTL <= 0 {
		c.Credentials.CacheTTL = 60 * time.Second
	}
	if c.Queue.WorkerConcurrency == 0 {
		c.Queue.WorkerConcurrency = 4
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = time.Second
	}
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// MigrateURL is the postgres:// form of the DSN expected by golang-migrate.
func (c Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// StatusCallbackURL is the absolute URL the telephony gateway posts call status updates to.
func (c Config) StatusCallbackURL() string {
	if c.Voice.PublicBaseURL == "" {
		return ""
	}
	return c.Voice.PublicBaseURL + "/webhooks/twilio/call-status"
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

func mustInt(v *viper.Viper, key string) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func optionalInt(v *viper.Viper, key string) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func mustDuration(v *viper.Viper, key string) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
