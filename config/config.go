package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	TrackDesk TrackDeskConfig `yaml:"trackdesk"`
}

type DatabaseConfig struct {
	// URL имеет приоритет над отдельными полями.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	OrderEventsTopic   string `yaml:"order_events_topic"`
	ShipmentScansTopic string `yaml:"shipment_scans_topic"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// BootstrapConfig describes the super_admin created on an empty admin_users table.
type BootstrapConfig struct {
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type TrackDeskConfig struct {
	GRPCAddr           string `yaml:"grpc_addr"`
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	PageSize                int `yaml:"page_size"`
	TrackingCacheTTLSeconds int `yaml:"tracking_cache_ttl_seconds"`
	SessionTTLSeconds       int `yaml:"session_ttl_seconds"`
	TrackRateLimitPerMinute int `yaml:"track_rate_limit_per_minute"`
	LoginRateLimitPerMinute int `yaml:"login_rate_limit_per_minute"`

	// TrustedProxies: адреса или CIDR балансировщиков, которым можно верить в X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`

	RelayHTTPAddr            string `yaml:"relay_http_addr"`
	RelayPollIntervalSeconds int    `yaml:"relay_poll_interval_seconds"`
	RelayBatchSize           int    `yaml:"relay_batch_size"`
	RelayConcurrency         int    `yaml:"relay_concurrency"`
	RelayLeaseSeconds        int    `yaml:"relay_lease_seconds"`
	RelayMaxAttempts         int    `yaml:"relay_max_attempts"`

	// Backoff между попытками публикации. Если не задано: 5s/30s/2m/10m.
	RelayBackoff1Seconds int `yaml:"relay_backoff_1_seconds"`
	RelayBackoff2Seconds int `yaml:"relay_backoff_2_seconds"`
	RelayBackoff3Seconds int `yaml:"relay_backoff_3_seconds"`
	RelayBackoff4Seconds int `yaml:"relay_backoff_4_seconds"`
}

// LoadConfig reads a YAML file, expanding ${VAR} references from the environment.
// A .env file next to the working directory is loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// Validate fails fast on settings without which the services cannot run.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host or database.url is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.name is required")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("config: database.username is required")
		}
	}
	if c.Kafka.Host == "" {
		return fmt.Errorf("config: kafka.host is required")
	}
	if !validPort(c.Kafka.Port) {
		return fmt.Errorf("config: kafka.port %d is out of range", c.Kafka.Port)
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("config: redis.host is required")
	}
	if !validPort(c.Redis.Port) {
		return fmt.Errorf("config: redis.port %d is out of range", c.Redis.Port)
	}
	if !validPort(c.Database.Port) {
		return fmt.Errorf("config: database.port %d is out of range", c.Database.Port)
	}
	if _, err := c.TrackDesk.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// validPort: 0 значит "порт по умолчанию".
func validPort(p int) bool {
	return p >= 0 && p <= 65535
}

// TrustedProxyPrefixes parses trusted_proxies; a bare address becomes a single-host prefix.
func (t TrackDeskConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range t.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("config: trackdesk.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("config: trackdesk.trusted_proxies: %w", err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	port := d.Port
	if port == 0 {
		port = 5432
	}
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	return u.String()
}

func (k KafkaConfig) Broker() string {
	port := k.Port
	if port == 0 {
		port = 9092
	}
	return net.JoinHostPort(k.Host, strconv.Itoa(port))
}

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(port))
}

// NewLogger строит slog-логгер по секции logging: json по умолчанию, text для локальной отладки.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
