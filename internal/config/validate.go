package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Valid values for Account.AuthType.
const (
	AuthTypeLox   = "lox"
	AuthTypeToken = "token"
)

// Validate checks every account and returns all errors found, accumulated
// rather than stopping at the first, so a user fixing a config sees every
// problem in one pass.
func Validate(cfg *Config) error {
	var errs []error

	for name, acct := range cfg.Accounts {
		errs = append(errs, validateAccount(name, acct)...)
	}

	return errors.Join(errs...)
}

func validateAccount(name string, acct Account) []error {
	var errs []error

	if acct.LocalDir == "" {
		errs = append(errs, fmt.Errorf("account %q: local_dir is required", name))
	}

	if acct.LoxURL == "" {
		errs = append(errs, fmt.Errorf("account %q: lox_url is required", name))
	} else if _, err := url.ParseRequestURI(acct.LoxURL); err != nil {
		errs = append(errs, fmt.Errorf("account %q: lox_url %q is not a valid URL: %w", name, acct.LoxURL, err))
	}

	if acct.Username == "" {
		errs = append(errs, fmt.Errorf("account %q: username is required", name))
	}

	switch acct.AuthType {
	case AuthTypeLox, AuthTypeToken:
	default:
		errs = append(errs, fmt.Errorf("account %q: unknown auth_type %q", name, acct.AuthType))
	}

	if _, err := time.ParseDuration(acct.Interval); err != nil {
		errs = append(errs, fmt.Errorf("account %q: invalid interval %q: %w", name, acct.Interval, err))
	}

	return errs
}
