package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable description of a repository: its layout lists,
// identity fields and signing setup. It is passed by value into every
// component at construction; nothing mutates it afterwards.
type Config struct {
	// RootDir is the repository root holding pool/, dists/ and state.
	RootDir string `yaml:"root_dir"`

	// Identity fields stamped into every Release manifest.
	Origin      string `yaml:"origin"`
	Label       string `yaml:"label"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description"`

	// Layout lists.
	Distributions []string `yaml:"distributions"`
	Components    []string `yaml:"components"`
	Architectures []string `yaml:"architectures"`

	// Signing. The key is referenced by identifier; private key material
	// stays in the keyring file, never in repository state.
	GPGKeyring    string `yaml:"gpg_keyring"`
	GPGKeyID      string `yaml:"gpg_key_id"`
	GPGPassphrase string `yaml:"gpg_passphrase"`

	// SigningTimeoutSecs bounds one signing call during publish. Zero
	// means no timeout.
	SigningTimeoutSecs int `yaml:"signing_timeout_secs"`
}

// SigningTimeout returns the signing timeout as a duration.
func (c Config) SigningTimeout() time.Duration {
	return time.Duration(c.SigningTimeoutSecs) * time.Second
}

// Default returns the stock two-branch repository layout.
func Default() Config {
	return Config{
		Origin:        "aptforge",
		Label:         "aptforge",
		Distributions: []string{"stable", "testing"},
		Components:    []string{"main", "contrib", "non-free"},
		Architectures: []string{"amd64", "i386"},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config is complete enough to open a repository.
func (c Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir is required")
	}
	if len(c.Distributions) == 0 {
		return fmt.Errorf("at least one distribution is required")
	}
	if len(c.Components) == 0 {
		return fmt.Errorf("at least one component is required")
	}
	if len(c.Architectures) == 0 {
		return fmt.Errorf("at least one architecture is required")
	}
	return nil
}

// HasDistribution reports whether name is a configured distribution.
func (c Config) HasDistribution(name string) bool {
	return contains(c.Distributions, name)
}

// HasComponent reports whether name is a configured component.
func (c Config) HasComponent(name string) bool {
	return contains(c.Components, name)
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
