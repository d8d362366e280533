package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// minWarnInterval is the threshold below which ResolvedAccount.Interval
// draws a warning at session construction (spec: interval < 60s is noisy).
const minWarnInterval = 60 * time.Second

// Load decodes already-decrypted TOML account configuration from r. The
// encryption of the blob at rest, if any, is the caller's concern; this
// function only ever sees plaintext TOML.
func Load(r io.Reader, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()

	var raw struct {
		Accounts map[string]Account `toml:"account"`
	}

	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for name, acct := range raw.Accounts {
		merged := DefaultAccount()
		mergeAccount(&merged, acct)
		cfg.Accounts[name] = merged
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config parsed", slog.Int("account_count", len(cfg.Accounts)))

	return cfg, nil
}

// mergeAccount overlays the TOML-decoded fields of acct onto defaults,
// leaving fields acct never set (auth_type, interval) at their defaults.
func mergeAccount(defaults *Account, acct Account) {
	defaults.LocalDir = acct.LocalDir
	defaults.LoxURL = acct.LoxURL
	defaults.Username = acct.Username
	defaults.Password = acct.Password
	defaults.ClientID = acct.ClientID
	defaults.ClientSecret = acct.ClientSecret
	defaults.Encrypt = acct.Encrypt
	defaults.AgentID = acct.AgentID
	defaults.Passphrase = acct.Passphrase

	if acct.AuthType != "" {
		defaults.AuthType = acct.AuthType
	}

	if acct.Interval != "" {
		defaults.Interval = acct.Interval
	}
}

// LoadFile opens path and decodes it with Load, for the common case of a
// config file already decrypted onto disk.
func LoadFile(path string, logger *slog.Logger) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer f.Close()

	return Load(f, logger)
}

// ResolvedAccount is an Account with its string fields parsed into the
// types the session loop and remote client actually consume.
type ResolvedAccount struct {
	Name         string
	LocalDir     string
	LoxURL       string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	AuthType     string
	Interval     time.Duration
	Encrypt      bool
	AgentID      string
	Passphrase   string
}

// ResolveAccount looks up name in cfg and parses its duration field,
// warning if the interval is nonzero but shorter than a minute.
func ResolveAccount(cfg *Config, name string, logger *slog.Logger) (*ResolvedAccount, error) {
	if logger == nil {
		logger = slog.Default()
	}

	acct, ok := cfg.Accounts[name]
	if !ok {
		return nil, fmt.Errorf("account %q not found in config", name)
	}

	interval, err := time.ParseDuration(acct.Interval)
	if err != nil {
		return nil, fmt.Errorf("account %q: invalid interval %q: %w", name, acct.Interval, err)
	}

	if interval > 0 && interval < minWarnInterval {
		logger.Warn("account interval is unusually short", slog.String("account", name), slog.Duration("interval", interval))
	}

	return &ResolvedAccount{
		Name:         name,
		LocalDir:     expandTilde(acct.LocalDir),
		LoxURL:       acct.LoxURL,
		Username:     acct.Username,
		Password:     acct.Password,
		ClientID:     acct.ClientID,
		ClientSecret: acct.ClientSecret,
		AuthType:     acct.AuthType,
		Interval:     interval,
		Encrypt:      acct.Encrypt,
		AgentID:      acct.AgentID,
		Passphrase:   acct.Passphrase,
	}, nil
}

// ResolveAccounts resolves every account in cfg, sorted by name is left to
// the caller since Go map iteration is already non-deterministic at the
// call site that needs ordering.
func ResolveAccounts(cfg *Config, logger *slog.Logger) ([]*ResolvedAccount, error) {
	resolved := make([]*ResolvedAccount, 0, len(cfg.Accounts))

	for name := range cfg.Accounts {
		ra, err := ResolveAccount(cfg, name, logger)
		if err != nil {
			return nil, err
		}

		resolved = append(resolved, ra)
	}

	return resolved, nil
}
