// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/hoststream/lib/version"
	"github.com/bureau-foundation/hoststream/transport"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "HOSTSTREAM_CONFIG"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Transport kinds.
const (
	TransportTCP    = "tcp"
	TransportWebRTC = "webrtc"
)

// Config is the complete configuration.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Input     InputConfig     `yaml:"input"`
	Stream    StreamConfig    `yaml:"stream"`
	Directory DirectoryConfig `yaml:"directory"`
	Transport TransportConfig `yaml:"transport"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Host configures cmd/hoststream-host. The client ignores it.
	Host HostConfig `yaml:"host"`
}

// ClientConfig identifies the client to hosts.
type ClientConfig struct {
	// Name is shown on the host. Default: hoststream
	Name string `yaml:"name"`
}

// InputConfig tunes input forwarding.
type InputConfig struct {
	// RelativeMouse forwards motion deltas instead of absolute
	// positions.
	RelativeMouse bool `yaml:"relative_mouse"`

	// BackHoldInterval is the back-button poll period. Default: 16ms
	BackHoldInterval time.Duration `yaml:"back_hold_interval"`

	// BackHoldTicks is how many polls a held back button needs to open
	// the overlay. Default: 100
	BackHoldTicks int `yaml:"back_hold_ticks"`
}

// StreamConfig is the requested stream shape.
type StreamConfig struct {
	Width       int  `yaml:"width"`
	Height      int  `yaml:"height"`
	FrameRate   int  `yaml:"frame_rate"`
	BitrateKbps int  `yaml:"bitrate_kbps"`
	PreferHEVC  bool `yaml:"prefer_hevc"`
}

// DirectoryConfig locates the host directory broker.
type DirectoryConfig struct {
	// URL is the broker websocket URL. Default: ws://127.0.0.1:27035/directory
	URL string `yaml:"url"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`

	// MinimumHostVersion hides older hosts. Default: 1.0
	MinimumHostVersion string `yaml:"minimum_host_version"`
}

// TransportConfig selects how stream connections are made.
type TransportConfig struct {
	// Kind is "tcp" or "webrtc". Default: tcp
	Kind string `yaml:"kind"`

	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// STUN and TURN are used by the webrtc transport only.
	STUN []string     `yaml:"stun"`
	TURN []TURNConfig `yaml:"turn"`
}

// TURNConfig is one TURN relay.
type TURNConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Output is a file path. Empty logs to stderr, except in the TUI,
	// where empty discards.
	Output string `yaml:"output"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is a host:port. Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// HostConfig configures the development host.
type HostConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// BrokerListen serves the directory websocket.
	BrokerListen string `yaml:"broker_listen"`

	// StreamListen serves TCP stream connections.
	StreamListen string `yaml:"stream_listen"`

	// AdvertiseAddress is the host:port announced to clients. Default:
	// derived from StreamListen.
	AdvertiseAddress string `yaml:"advertise_address"`

	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns a configuration with every field set.
func Default() *Config {
	return &Config{
		Client: ClientConfig{Name: "hoststream"},
		Input: InputConfig{
			BackHoldInterval: 16 * time.Millisecond,
			BackHoldTicks:    100,
		},
		Stream: StreamConfig{
			Width:       1920,
			Height:      1080,
			FrameRate:   60,
			BitrateKbps: 20000,
			PreferHEVC:  true,
		},
		Directory: DirectoryConfig{
			URL:                "ws://127.0.0.1:27035/directory",
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
			MinimumHostVersion: "1.0",
		},
		Transport: TransportConfig{
			Kind:             TransportTCP,
			DialTimeout:      5 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Host: HostConfig{
			Name:         "devhost",
			Version:      "1.0.0",
			BrokerListen: "127.0.0.1:27035",
			StreamListen: "127.0.0.1:27040",
			TokenTTL:     30 * time.Second,
		},
	}
}

// Load loads the file named by HOSTSTREAM_CONFIG. It fails if the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your hoststream.yaml, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads path over the defaults, expands variables, and
// validates the result.
func LoadFile(path string) (*Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	config.expandVariables()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) expandVariables() {
	c.Directory.URL = expandVars(c.Directory.URL)
	c.Log.Output = expandVars(c.Log.Output)
	c.Host.AdvertiseAddress = expandVars(c.Host.AdvertiseAddress)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. An unset or empty
// variable without a default expands to the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks every section and joins all failures.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Client.Name == "" {
		invalid("client.name is required")
	}
	if c.Input.BackHoldInterval <= 0 {
		invalid("input.back_hold_interval must be positive, got %s", c.Input.BackHoldInterval)
	}
	if c.Input.BackHoldTicks <= 0 {
		invalid("input.back_hold_ticks must be positive, got %d", c.Input.BackHoldTicks)
	}
	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		invalid("stream resolution must be positive, got %dx%d", c.Stream.Width, c.Stream.Height)
	}
	if c.Stream.FrameRate <= 0 || c.Stream.FrameRate > 240 {
		invalid("stream.frame_rate must be in 1..240, got %d", c.Stream.FrameRate)
	}
	if c.Stream.BitrateKbps <= 0 {
		invalid("stream.bitrate_kbps must be positive, got %d", c.Stream.BitrateKbps)
	}

	if parsed, err := url.Parse(c.Directory.URL); err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") || parsed.Host == "" {
		invalid("directory.url must be a ws:// or wss:// URL, got %q", c.Directory.URL)
	}
	if c.Directory.ReconnectBaseDelay <= 0 {
		invalid("directory.reconnect_base_delay must be positive")
	}
	if c.Directory.ReconnectMaxDelay < c.Directory.ReconnectBaseDelay {
		invalid("directory.reconnect_max_delay (%s) is below reconnect_base_delay (%s)",
			c.Directory.ReconnectMaxDelay, c.Directory.ReconnectBaseDelay)
	}
	if _, err := version.Parse(c.Directory.MinimumHostVersion); err != nil {
		invalid("directory.minimum_host_version: %v", err)
	}

	switch c.Transport.Kind {
	case TransportTCP, TransportWebRTC:
	default:
		invalid("transport.kind must be %q or %q, got %q", TransportTCP, TransportWebRTC, c.Transport.Kind)
	}
	if c.Transport.DialTimeout <= 0 || c.Transport.HandshakeTimeout <= 0 {
		invalid("transport timeouts must be positive")
	}
	for i, turn := range c.Transport.TURN {
		if len(turn.URLs) == 0 {
			invalid("transport.turn[%d] has no urls", i)
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			invalid("metrics.listen: %v", err)
		}
	}
	if c.Host.TokenTTL <= 0 {
		invalid("host.token_ttl must be positive")
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, err
	}
	return level, nil
}

// ICEConfig builds the WebRTC ICE configuration.
func (t TransportConfig) ICEConfig() transport.ICEConfig {
	turn := make([]transport.TURNServer, 0, len(t.TURN))
	for _, server := range t.TURN {
		turn = append(turn, transport.TURNServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return transport.NewICEConfig(t.STUN, turn)
}

// MinimumVersion parses MinimumHostVersion. Call after Validate.
func (d DirectoryConfig) MinimumVersion() version.Number {
	number, _ := version.Parse(d.MinimumHostVersion)
	return number
}
