package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override profile.toml values.
const (
	EnvAPIURL    = "INBOXSYNC_API_URL"
	EnvWSURL     = "INBOXSYNC_WS_URL"
	EnvToken     = "INBOXSYNC_TOKEN"
	EnvUserID    = "INBOXSYNC_USER_ID"
	EnvAccountID = "INBOXSYNC_ACCOUNT_ID"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PairingConfig tunes the pairing status polling fallback.
type PairingConfig struct {
	GraceDelay              Duration `toml:"grace_delay"`
	Interval                Duration `toml:"interval"`
	MaxElapsed              Duration `toml:"max_elapsed"`
	DisconnectConfirmations int      `toml:"disconnect_confirmations"`
}

// ReconnectConfig tunes push-channel reconnection backoff.
type ReconnectConfig struct {
	InitialInterval Duration `toml:"initial_interval"`
	MaxInterval     Duration `toml:"max_interval"`
}

// Profile is the per-profile <profile>/profile.toml.
type Profile struct {
	APIURL            string          `toml:"api_url"`
	WSURL             string          `toml:"ws_url"`
	Token             string          `toml:"token"`
	UserID            string          `toml:"user_id"`
	AccountID         string          `toml:"account_id"`
	Sessions          []string        `toml:"sessions"`
	RequestTimeout    Duration        `toml:"request_timeout"`
	DirectoryDebounce Duration        `toml:"directory_debounce"`
	Pairing           PairingConfig   `toml:"pairing"`
	Reconnect         ReconnectConfig `toml:"reconnect"`
}

// Default profile values.
const (
	DefaultRequestTimeout    = 15 * time.Second
	DefaultDirectoryDebounce = 300 * time.Millisecond
	DefaultGraceDelay        = 5 * time.Second
	DefaultPollInterval      = 3 * time.Second
	DefaultPollMaxElapsed    = 60 * time.Second
	DefaultReconnectInitial  = 500 * time.Millisecond
	DefaultReconnectMax      = 30 * time.Second
)

// LoadProfile reads a profile file. A missing file yields an all-defaults
// profile so environment variables alone can configure the daemon.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("decode profile %s: %w", path, err)
	}
	p.ApplyDefaults()
	return &p, nil
}

// SaveProfile writes a profile file with 0600 permissions.
func SaveProfile(path string, p *Profile) error {
	return writeTOML(path, p)
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (p *Profile) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&p.APIURL, EnvAPIURL)
	set(&p.WSURL, EnvWSURL)
	set(&p.Token, EnvToken)
	set(&p.UserID, EnvUserID)
	set(&p.AccountID, EnvAccountID)
}

// ApplyDefaults fills every zero field with its default.
func (p *Profile) ApplyDefaults() {
	def := func(d *Duration, v time.Duration) {
		if *d <= 0 {
			*d = Duration(v)
		}
	}
	def(&p.RequestTimeout, DefaultRequestTimeout)
	def(&p.DirectoryDebounce, DefaultDirectoryDebounce)
	def(&p.Pairing.GraceDelay, DefaultGraceDelay)
	def(&p.Pairing.Interval, DefaultPollInterval)
	def(&p.Pairing.MaxElapsed, DefaultPollMaxElapsed)
	def(&p.Reconnect.InitialInterval, DefaultReconnectInitial)
	def(&p.Reconnect.MaxInterval, DefaultReconnectMax)
	if p.Pairing.DisconnectConfirmations <= 0 {
		p.Pairing.DisconnectConfirmations = 1
	}
	if p.WSURL == "" && p.APIURL != "" {
		p.WSURL = deriveWSURL(p.APIURL)
	}
}

// Validate checks that the backend endpoints are usable.
func (p *Profile) Validate() error {
	if p.APIURL == "" {
		return fmt.Errorf("api_url is required (or set %s)", EnvAPIURL)
	}
	if u, err := url.Parse(p.APIURL); err != nil || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", p.APIURL)
	}
	if p.WSURL == "" {
		return fmt.Errorf("ws_url is required (or set %s)", EnvWSURL)
	}
	u, err := url.Parse(p.WSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("invalid ws_url %q: scheme must be ws or wss", p.WSURL)
	}
	if p.Pairing.Interval.Std() > p.Pairing.MaxElapsed.Std() {
		return fmt.Errorf("pairing interval %s exceeds max_elapsed %s", p.Pairing.Interval.Std(), p.Pairing.MaxElapsed.Std())
	}
	return nil
}

// deriveWSURL maps http(s)://host/api to ws(s)://host/ws.
func deriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}
