package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

type Config struct {
	Store     StoreConfig
	Camera    CameraConfig
	Session   SessionConfig
	Extractor ExtractorConfig
	Match     MatchConfig
	Lockout   LockoutConfig
	Web       WebConfig
	Profiles  ProfilesConfig
}

type StoreConfig struct {
	Backend      string // sqlite (default), postgres, mariadb, memory
	SQLitePath   string // defaults to <user config dir>/facegate/facegate.db
	PostgresURL  string // PostgreSQL connection URL
	MariaDBDSN   string // e.g. facegate:facegate@tcp(mariadb:3306)/facegate
	MaxOpenConns int    // Maximum open connections for server backends (default 5)
	MaxIdleConns int    // Maximum idle connections for server backends (default 2)
	Key          string // hex-encoded 32 byte key for sealing stored values
	Passphrase   string // alternative to Key, stretched with Argon2id
}

// Sealed reports whether stored values should be encrypted at rest.
func (c *StoreConfig) Sealed() bool {
	return c.Key != "" || c.Passphrase != ""
}

type CameraConfig struct {
	Dir       string // folder the capture tool writes frames into
	Label     string // preferred device label (optional)
	TimeoutMs int    // defaults to 8000
	MinWidth  int    // frames narrower than this are ignored (optional)
	MinHeight int    // frames shorter than this are ignored (optional)
}

// Timeout returns the acquisition cutoff.
func (c *CameraConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

type SessionConfig struct {
	PollIntervalMs     int // frame sampling interval, defaults to 100
	ProgressIntervalMs int // scan progress tick, defaults to 30
	EnrollRounds       int // capture rounds per enrollment, defaults to 3
}

type ExtractorConfig struct {
	Name         string // geometry (default) or embedding
	EmbeddingURL string // defaults to http://localhost:8000
}

type MatchConfig struct {
	Threshold float64 // overrides the profile threshold when > 0
	MinVotes  int     // overrides the profile vote count when > 0
}

type LockoutConfig struct {
	Threshold     int // failures inside the window that lock, defaults to 5
	WindowMinutes int // sliding window, defaults to 30
	Capacity      int // ledger length, defaults to 20
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

type ProfilesConfig struct {
	Profiles map[string]MatchProfile `yaml:"profiles"`
}

type MatchProfile struct {
	Points    int     `yaml:"points"`
	Threshold float64 `yaml:"threshold"`
	MinVotes  int     `yaml:"min_votes"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "facegate.db"
	}
	return filepath.Join(dir, "facegate", "facegate.db")
}

func Load() *Config {
	var profiles ProfilesConfig
	if err := yaml.Unmarshal(profilesYAML, &profiles); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded profiles.yaml: " + err.Error())
	}

	return &Config{
		Store: StoreConfig{
			Backend:      envString("FACEGATE_STORE", "sqlite"),
			SQLitePath:   envString("FACEGATE_SQLITE_PATH", defaultSQLitePath()),
			PostgresURL:  os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("FACEGATE_MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
			Key:          os.Getenv("FACEGATE_STORE_KEY"),
			Passphrase:   os.Getenv("FACEGATE_STORE_PASSPHRASE"),
		},
		Camera: CameraConfig{
			Dir:       os.Getenv("FACEGATE_CAMERA_DIR"),
			Label:     os.Getenv("FACEGATE_CAMERA_LABEL"),
			TimeoutMs: envInt("FACEGATE_CAMERA_TIMEOUT_MS", 8000),
			MinWidth:  envInt("FACEGATE_CAMERA_MIN_WIDTH", 0),
			MinHeight: envInt("FACEGATE_CAMERA_MIN_HEIGHT", 0),
		},
		Session: SessionConfig{
			PollIntervalMs:     envInt("FACEGATE_POLL_INTERVAL_MS", 100),
			ProgressIntervalMs: envInt("FACEGATE_PROGRESS_INTERVAL_MS", 30),
			EnrollRounds:       envInt("FACEGATE_ENROLL_ROUNDS", 3),
		},
		Extractor: ExtractorConfig{
			Name:         envString("FACEGATE_EXTRACTOR", "geometry"),
			EmbeddingURL: os.Getenv("EMBEDDING_URL"),
		},
		Match: MatchConfig{
			Threshold: envFloat("FACEGATE_MATCH_THRESHOLD", 0),
			MinVotes:  envInt("FACEGATE_MATCH_MIN_VOTES", 0),
		},
		Lockout: LockoutConfig{
			Threshold:     envInt("FACEGATE_LOCKOUT_THRESHOLD", 5),
			WindowMinutes: envInt("FACEGATE_LOCKOUT_WINDOW_MIN", 30),
			Capacity:      20,
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "127.0.0.1"),
			Port:           envInt("WEB_PORT", 8765),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Profiles: profiles,
	}
}

// GetMatchProfile returns the profile for an extractor with any env overrides
// applied. Unknown extractors fall back to the geometry profile.
func (c *Config) GetMatchProfile(extractor string) MatchProfile {
	profile, ok := c.Profiles.Profiles[extractor]
	if !ok {
		profile = c.Profiles.Profiles["geometry"]
	}
	if c.Match.Threshold > 0 {
		profile.Threshold = c.Match.Threshold
	}
	if c.Match.MinVotes > 0 {
		profile.MinVotes = c.Match.MinVotes
	}
	return profile
}
