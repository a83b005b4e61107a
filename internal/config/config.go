package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for arclight.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Wallet     WalletConfig     `toml:"wallet"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Namespaces NamespaceConfig  `toml:"namespaces"`
	Encryption EncryptionConfig `toml:"encryption"`
	Journal    JournalConfig    `toml:"journal"`
	Cache      CacheConfig      `toml:"cache"`
	Server     ServerConfig     `toml:"server"`
}

// WalletConfig locates the JWK key file that signs every record.
type WalletConfig struct {
	KeyPath string `toml:"key_path"`
}

// LedgerConfig represents configuration for the ledger backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LedgerConfig struct {
	Type      string `toml:"type"`                 // "memory", "filesystem", or "s3"
	ChunkSize int64  `toml:"chunk_size,omitempty"` // upload chunk size in bytes; 0 selects the backend default

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3PathStyle       bool   `toml:"s3_path_style,omitempty"`
}

// NamespaceConfig holds the App-Name values records are written under.
// Empty values fall back to the public marketplace namespaces.
type NamespaceConfig struct {
	App      string `toml:"app,omitempty"`
	Identity string `toml:"identity,omitempty"`
	Avatar   string `toml:"avatar,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for media payloads.
type EncryptionConfig struct {
	Type           string   `toml:"type"` // "age" (default), "test", or "none"
	PublicKeyPath  string   `toml:"public_key_path"`
	PrivateKeyPath string   `toml:"private_key_path"`
	Recipients     []string `toml:"recipients,omitempty"` // extra age recipients media is sealed to
}

// JournalConfig represents configuration for the local publish journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CacheConfig controls the record cache in front of the ledger.
type CacheConfig struct {
	Disabled bool   `toml:"disabled,omitempty"`
	TTL      string `toml:"ttl,omitempty"` // Go duration, e.g. "10m"
}

// Duration parses TTL, defaulting to ten minutes.
func (c CacheConfig) Duration() (time.Duration, error) {
	if c.TTL == "" {
		return 10 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("parsing cache ttl %q: %w", c.TTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("cache ttl must be positive, got %s", c.TTL)
	}
	return d, nil
}

// ServerConfig configures `arclight serve`.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Wallet: WalletConfig{
			KeyPath: filepath.Join(baseDir, "keys", "wallet.json"),
		},
		Ledger: LedgerConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "ledger"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "media.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "media.key"),
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Cache:  CacheConfig{TTL: "10m"},
		Server: ServerConfig{Listen: "127.0.0.1:8490"},
	}
}

// Validate checks the tagged unions for missing fields.
func (c *Config) Validate() error {
	switch c.Ledger.Type {
	case "memory":
	case "filesystem":
		if c.Ledger.FSRoot == "" {
			return fmt.Errorf("filesystem ledger requires fs_root to be set")
		}
	case "s3":
		if c.Ledger.S3Bucket == "" {
			return fmt.Errorf("s3 ledger requires s3_bucket to be set")
		}
	default:
		return fmt.Errorf("unknown ledger type: %q", c.Ledger.Type)
	}
	if c.Ledger.ChunkSize < 0 {
		return fmt.Errorf("ledger chunk_size must not be negative")
	}
	switch c.Journal.Type {
	case "memory":
	case "sqlite":
		if c.Journal.DataDir == "" {
			return fmt.Errorf("sqlite journal requires data_dir to be set")
		}
	default:
		return fmt.Errorf("unknown journal type: %q", c.Journal.Type)
	}
	if _, err := c.Cache.Duration(); err != nil {
		return err
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path, refusing to overwrite an existing config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
