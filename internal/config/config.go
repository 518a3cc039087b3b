// Package config holds the server configuration surface: environment
// variables provide defaults, flags override them.
package config

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig is the full configuration of a gridhud server process.
type ServerConfig struct {
	ListenHTTP  string
	ListenHTTPS string

	TLSMode      string // off | auto | static
	Domain       string // public hostname for ACME in auto mode
	CertCacheDir string
	TLSCertFile  string
	TLSKeyFile   string
	EnableH3     bool

	Secret    string
	Tolerance time.Duration

	RegisterLimit int
	ScanLimit     int
	RateWindow    time.Duration
	MaxScanIDs    int

	DBPath    string // SQLite path; empty keeps the registry in memory
	RedisAddr string // shared limiter backend; empty keeps limiting local

	AdminKey  string // guards the listing endpoints; empty disables them
	RanksFile string // YAML classification table; empty means static label

	LogLevel  string
	LogFormat string
	PprofAddr string

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	SweepInterval  time.Duration
}

const defaultListenHTTP = ":8080"
const defaultListenHTTPS = ":8443"
const defaultCertCacheDir = "./cert"
const defaultToleranceSecs = 60
const defaultRegisterLimit = 60
const defaultScanLimit = 120
const defaultMaxScanIDs = 25
const defaultRequestTimeout = 30 * time.Second
const defaultMaxBodyBytes = 1 << 20
const defaultSweepInterval = time.Minute

// ParseServerFlags builds a ServerConfig from GRIDHUD_* environment
// defaults overlaid with command-line flags, then validates it.
func ParseServerFlags(args []string) (ServerConfig, error) {
	cfg := ServerConfig{
		ListenHTTP:     envOrDefault("GRIDHUD_LISTEN", defaultListenHTTP),
		ListenHTTPS:    envOrDefault("GRIDHUD_LISTEN_TLS", defaultListenHTTPS),
		TLSMode:        envOrDefault("GRIDHUD_TLS_MODE", "off"),
		Domain:         envOrDefault("GRIDHUD_DOMAIN", ""),
		CertCacheDir:   envOrDefault("GRIDHUD_CERT_CACHE_DIR", defaultCertCacheDir),
		TLSCertFile:    envOrDefault("GRIDHUD_TLS_CERT_FILE", ""),
		TLSKeyFile:     envOrDefault("GRIDHUD_TLS_KEY_FILE", ""),
		EnableH3:       envBoolOrDefault("GRIDHUD_H3", false),
		Secret:         envOrDefault("GRIDHUD_SECRET", ""),
		DBPath:         envOrDefault("GRIDHUD_DB_PATH", ""),
		RedisAddr:      envOrDefault("GRIDHUD_REDIS_ADDR", ""),
		AdminKey:       envOrDefault("GRIDHUD_ADMIN_KEY", ""),
		RanksFile:      envOrDefault("GRIDHUD_RANKS_FILE", ""),
		LogLevel:       envOrDefault("GRIDHUD_LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("GRIDHUD_LOG_FORMAT", "text"),
		PprofAddr:      envOrDefault("GRIDHUD_PPROF_ADDR", ""),
		RateWindow:     time.Minute,
		RequestTimeout: defaultRequestTimeout,
		MaxBodyBytes:   defaultMaxBodyBytes,
		SweepInterval:  defaultSweepInterval,
	}

	toleranceSecs := envIntOrDefault("GRIDHUD_TOLERANCE", defaultToleranceSecs)
	registerLimit := envIntOrDefault("GRIDHUD_REGISTER_LIMIT", defaultRegisterLimit)
	scanLimit := envIntOrDefault("GRIDHUD_SCAN_LIMIT", defaultScanLimit)
	maxScanIDs := envIntOrDefault("GRIDHUD_MAX_SCAN_IDS", defaultMaxScanIDs)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenHTTP, "listen", cfg.ListenHTTP, "HTTP listen address")
	fs.StringVar(&cfg.ListenHTTPS, "listen-tls", cfg.ListenHTTPS, "TLS listen address")
	fs.StringVar(&cfg.TLSMode, "tls-mode", cfg.TLSMode, "TLS mode: off|auto|static")
	fs.StringVar(&cfg.Domain, "domain", cfg.Domain, "Public hostname for ACME certificates (tls-mode auto)")
	fs.StringVar(&cfg.CertCacheDir, "cert-cache-dir", cfg.CertCacheDir, "TLS cert cache dir (tls-mode auto)")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "Static TLS cert PEM file (tls-mode static)")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "Static TLS key PEM file (tls-mode static)")
	fs.BoolVar(&cfg.EnableH3, "h3", cfg.EnableH3, "Serve HTTP/3 alongside TLS")
	fs.StringVar(&cfg.Secret, "secret", cfg.Secret, "Shared signing secret the devices embed")
	fs.IntVar(&toleranceSecs, "tolerance", toleranceSecs, "Timestamp drift tolerance in seconds")
	fs.IntVar(&registerLimit, "register-limit", registerLimit, "Register requests allowed per source per window")
	fs.IntVar(&scanLimit, "scan-limit", scanLimit, "Scan requests allowed per source per window")
	fs.IntVar(&maxScanIDs, "max-scan-ids", maxScanIDs, "Max ids per scan request; excess is dropped")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty keeps the registry in memory)")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for a shared rate limiter (empty stays local)")
	fs.StringVar(&cfg.AdminKey, "admin-key", cfg.AdminKey, "Key guarding the listing endpoints (empty disables them)")
	fs.StringVar(&cfg.RanksFile, "ranks", cfg.RanksFile, "YAML classification table path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text|json")
	fs.StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "pprof listen address (empty disables)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Tolerance = time.Duration(toleranceSecs) * time.Second
	cfg.RegisterLimit = registerLimit
	cfg.ScanLimit = scanLimit
	cfg.MaxScanIDs = maxScanIDs

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ServerConfig) validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("missing --secret or GRIDHUD_SECRET")
	}

	c.TLSMode = strings.ToLower(strings.TrimSpace(c.TLSMode))
	if c.TLSMode == "" {
		c.TLSMode = "off"
	}
	switch c.TLSMode {
	case "off", "auto", "static":
	default:
		return errors.New("tls mode must be one of: off, auto, static")
	}
	if c.TLSMode == "auto" && strings.TrimSpace(c.Domain) == "" {
		return errors.New("tls-mode auto requires --domain")
	}
	if c.TLSMode == "static" && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return errors.New("tls-mode static requires --tls-cert-file and --tls-key-file")
	}
	if c.EnableH3 && c.TLSMode == "off" {
		return errors.New("h3 requires a TLS mode")
	}

	if c.Tolerance <= 0 {
		return errors.New("tolerance must be > 0")
	}
	if c.RegisterLimit <= 0 || c.ScanLimit <= 0 {
		return errors.New("rate limits must be > 0")
	}
	if c.RateWindow <= 0 {
		return errors.New("rate window must be > 0")
	}
	if c.MaxScanIDs <= 0 {
		return errors.New("max scan ids must be > 0")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolOrDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
