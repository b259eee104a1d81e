package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/sharing"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. WALLETD_DATA_DIR or
// WALLETD_KDF_TIME.
const EnvPrefix = "walletd"

var (
	// ErrMalformedConfig is returned when the file cannot be read or decoded.
	ErrMalformedConfig = errors.New("malformed configuration")

	// ErrInvalidConfig is returned when a decoded value fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// SharingConfig bounds the threshold splits users may request.
type SharingConfig struct {
	MaxShares        int `mapstructure:"max_shares"`
	DefaultTotal     int `mapstructure:"default_total"`
	DefaultThreshold int `mapstructure:"default_threshold"`
}

// Config is loaded once at startup and shared by pointer. Nothing mutates it
// after Load returns.
type Config struct {
	DataDir         string                       `mapstructure:"data_dir"`
	BackendURL      string                       `mapstructure:"backend_url"`
	DefaultNetwork  string                       `mapstructure:"default_network"`
	KDF             cryptoutils.KDFParams        `mapstructure:"kdf"`
	Credentials     cryptoutils.CredentialPolicy `mapstructure:"credentials"`
	Sharing         SharingConfig                `mapstructure:"sharing"`
	Networks        []interfaces.Network         `mapstructure:"networks"`
	Currencies      []string                     `mapstructure:"currencies"`
	StorageBackends []string                     `mapstructure:"storage_backends"`
}

// Load builds a Config from defaults, the file at path (skipped when path is
// empty) and WALLETD_* environment variables, in increasing precedence.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedConfig, path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.UnmarshalExact(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedConfig, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		DataDir:         dataDir,
		DefaultNetwork:  defaultNetworks[0].ID,
		KDF:             cryptoutils.DefaultKDFParams,
		Credentials:     cryptoutils.DefaultCredentialPolicy,
		Sharing:         defaultSharing,
		Networks:        append([]interfaces.Network(nil), defaultNetworks...),
		Currencies:      append([]string(nil), defaultCurrencies...),
	}
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalidConfig)
	}
	if err := c.KDF.Validate(); err != nil {
		return fmt.Errorf("%w: kdf: %w", ErrInvalidConfig, err)
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateSharing(); err != nil {
		return err
	}
	if err := c.validateNetworks(); err != nil {
		return err
	}
	if c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: backend_url %q must be an absolute http(s) URL", ErrInvalidConfig, c.BackendURL)
		}
	}
	for _, uri := range c.StorageBackends {
		if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
			return fmt.Errorf("%w: storage_backends: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) validateCredentials() error {
	p := c.Credentials
	if p.MinPinLength < 4 {
		return fmt.Errorf("%w: credentials.min_pin_length must be at least 4", ErrInvalidConfig)
	}
	if p.MaxPinLength != 0 && p.MaxPinLength < p.MinPinLength {
		return fmt.Errorf("%w: credentials.max_pin_length below min_pin_length", ErrInvalidConfig)
	}
	if p.MinPasswordLength < 1 {
		return fmt.Errorf("%w: credentials.min_password_length must be positive", ErrInvalidConfig)
	}
	if p.MinPasswordClasses < 0 || p.MinPasswordClasses > 4 {
		return fmt.Errorf("%w: credentials.min_password_classes must be between 0 and 4", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateSharing() error {
	s := c.Sharing
	if s.MaxShares < 1 || s.MaxShares > sharing.MaxShares {
		return fmt.Errorf("%w: sharing.max_shares must be between 1 and %d", ErrInvalidConfig, sharing.MaxShares)
	}
	if s.DefaultThreshold < 1 || s.DefaultThreshold > s.DefaultTotal || s.DefaultTotal > s.MaxShares {
		return fmt.Errorf("%w: sharing defaults %d of %d outside 1..%d", ErrInvalidConfig, s.DefaultThreshold, s.DefaultTotal, s.MaxShares)
	}
	return nil
}

func (c *Config) validateNetworks() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("%w: at least one network is required", ErrInvalidConfig)
	}

	currencies := make(map[string]bool, len(c.Currencies))
	for _, cur := range c.Currencies {
		currencies[strings.ToUpper(cur)] = true
	}

	seen := make(map[string]bool, len(c.Networks))
	for _, n := range c.Networks {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate network id %q", ErrInvalidConfig, n.ID)
		}
		seen[n.ID] = true
		if !currencies[strings.ToUpper(n.Currency)] {
			return fmt.Errorf("%w: network %s uses unsupported currency %q", ErrInvalidConfig, n.ID, n.Currency)
		}
	}
	if c.DefaultNetwork != "" && !seen[c.DefaultNetwork] {
		return fmt.Errorf("%w: default_network %q is not configured", ErrInvalidConfig, c.DefaultNetwork)
	}
	return nil
}

// Network looks up a configured network by id.
func (c *Config) Network(id string) (interfaces.Network, bool) {
	for _, n := range c.Networks {
		if n.ID == id {
			return n, true
		}
	}
	return interfaces.Network{}, false
}

func (c *Config) VaultDir() string {
	return filepath.Join(c.DataDir, "vaults")
}

func (c *Config) UserDBPath() string {
	return filepath.Join(c.DataDir, "users.db")
}

// StorageLocations parses StorageBackends. Validate has already rejected
// malformed entries.
func (c *Config) StorageLocations() ([]interfaces.StorageBackendLocation, error) {
	locs := make([]interfaces.StorageBackendLocation, 0, len(c.StorageBackends))
	for _, uri := range c.StorageBackends {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}
