package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hadir-sekolah/presensi/internal/capture"
)

// EnvPrefix is prepended to every environment variable, e.g.
// PRESENSI_HTTP_ADDR.
const EnvPrefix = "PRESENSI"

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health endpoint
	Debug    bool

	// DB
	Env    string // "dev" | "prod"
	Store  string // "memory" | "sqlite"
	DBPath string // e.g. "./data/presensi.db"

	KnownSubjects []string

	// Audit retention
	AuditRetentionDays int // 0 = keep forever
	PruneIntervalHours int // how often the pruner runs (default 6)

	RollbarToken string

	// AdminToken guards PUT /v1/settings. Empty leaves settings read-only
	// over HTTP.
	AdminToken string

	// SettingsSeed holds attendance settings given in the environment,
	// keyed by setting name. They are written at startup when the stored
	// value is empty.
	SettingsSeed map[string]string
}

type AgentConfig struct {
	ServerURL string
	SubjectID string
	Wire      string // "json" | "protobuf"
	Debug     bool

	Provider   string // "nmea" | "replay" | "static"
	NMEADevice string
	ReplayFile string
	StaticLat  float64
	StaticLon  float64
	StaticAcc  float64

	DesiredAccuracy float64
	AcquireTimeout  time.Duration
	AccuracyCeiling float64
	PolicyInterval  time.Duration
	ReuseMaxAge     time.Duration
	RequestTimeout  time.Duration
}

// FromEnv reads the server configuration. A .env file in the working
// directory is loaded first when present; real environment variables win.
func FromEnv() Config {
	loadDotEnv()
	v := newViper()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("debug", false)
	v.SetDefault("env", "dev")
	v.SetDefault("store", "sqlite")
	v.SetDefault("db_path", "./data/presensi.db")
	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("prune_interval_hours", 6)

	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("store")))
	if store != "memory" && store != "sqlite" {
		log.Printf("config: unknown store %q, using sqlite", store)
		store = "sqlite"
	}

	seed := make(map[string]string)
	for _, key := range capture.SettingKeys {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			seed[key] = val
		}
	}

	return Config{
		HTTPAddr: v.GetString("http_addr"),
		GRPCAddr: strings.TrimSpace(v.GetString("grpc_addr")),
		Debug:    v.GetBool("debug"),

		Env:    env,
		Store:  store,
		DBPath: v.GetString("db_path"),

		KnownSubjects: splitCSV(v.GetString("known_subjects")),

		AuditRetentionDays: nonNegative(v.GetInt("audit_retention_days"), 30),
		PruneIntervalHours: nonNegative(v.GetInt("prune_interval_hours"), 6),

		RollbarToken: v.GetString("rollbar_token"),
		AdminToken:   strings.TrimSpace(v.GetString("admin_token")),

		SettingsSeed: seed,
	}
}

// AgentFromEnv reads the device agent configuration.
func AgentFromEnv() AgentConfig {
	loadDotEnv()
	v := newViper()

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("wire", "json")
	v.SetDefault("provider", "nmea")
	v.SetDefault("nmea_device", "/dev/ttyACM0")
	v.SetDefault("static_accuracy", 5.0)
	v.SetDefault("desired_accuracy_m", capture.DefaultDesiredAccuracy)
	v.SetDefault("acquire_timeout", capture.DefaultAcquireTimeout)
	v.SetDefault("accuracy_ceiling_m", capture.DefaultAccuracyCeiling)
	v.SetDefault("policy_interval", capture.DefaultWatchInterval)
	v.SetDefault("reuse_max_age", time.Duration(0))
	v.SetDefault("request_timeout", 10*time.Second)

	wire := strings.ToLower(strings.TrimSpace(v.GetString("wire")))
	if wire != "json" && wire != "protobuf" {
		wire = "json"
	}

	return AgentConfig{
		ServerURL: strings.TrimRight(v.GetString("server_url"), "/"),
		SubjectID: strings.TrimSpace(v.GetString("subject_id")),
		Wire:      wire,
		Debug:     v.GetBool("debug"),

		Provider:   strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		NMEADevice: v.GetString("nmea_device"),
		ReplayFile: v.GetString("replay_file"),
		StaticLat:  v.GetFloat64("static_lat"),
		StaticLon:  v.GetFloat64("static_lon"),
		StaticAcc:  v.GetFloat64("static_accuracy"),

		DesiredAccuracy: v.GetFloat64("desired_accuracy_m"),
		AcquireTimeout:  v.GetDuration("acquire_timeout"),
		AccuracyCeiling: v.GetFloat64("accuracy_ceiling_m"),
		PolicyInterval:  v.GetDuration("policy_interval"),
		ReuseMaxAge:     v.GetDuration("reuse_max_age"),
		RequestTimeout:  v.GetDuration("request_timeout"),
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadDotEnv loads ./.env if it exists (ignore if it does not).
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("config: load .env: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("config: stat .env: %v", err)
	}
}

func nonNegative(n, def int) int {
	if n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
