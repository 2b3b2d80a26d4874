// ABOUTME: Process configuration from flags, MICFEED_* environment and .env files
// ABOUTME: Parses the optional positional pin number and the help aliases
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/virtual-audio-driver/micfeed/internal/version"
)

// EnvPrefix prefixes every environment variable read by Parse
const EnvPrefix = "MICFEED_"

// ErrInvalidPin is reported when the pin argument is not a non-negative
// integer. It is not fatal; pin 0 is used instead.
var ErrInvalidPin = errors.New("invalid pin number")

// Config holds runtime configuration
type Config struct {
	Pin     int
	PipeDir string

	LogFile string
	Debug   bool
	NoTUI   bool

	Script string
	Clip   string

	Monitor bool
	Volume  int

	HTTPAddr string
	MDNS     bool
	Name     string
	Discover bool

	// Warnings are non-fatal problems found while parsing
	Warnings []error
}

// UseTUI reports whether the terminal UI should run
func (c *Config) UseTUI() bool {
	return !c.NoTUI
}

// ReportWarnings prints each parse warning to w. It runs before the TUI
// takes the terminal so problems are visible in every mode.
func (c *Config) ReportWarnings(w io.Writer) {
	for _, warn := range c.Warnings {
		fmt.Fprintf(w, "Warning: %v\n", warn)
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// IsHelp reports whether arg asks for usage
func IsHelp(arg string) bool {
	switch arg {
	case "-h", "-help", "--help", "/?":
		return true
	}
	return false
}

// ParsePin parses the positional pin. Invalid or negative values return 0
// and an error wrapping ErrInvalidPin.
func ParsePin(s string) (int, error) {
	pin, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pin < 0 {
		return 0, fmt.Errorf("%w %q, using default 0", ErrInvalidPin, s)
	}
	return pin, nil
}

// Parse builds the configuration from args (without the program name).
// Defaults come from MICFEED_* variables, flags override them. Help prints
// usage to output and returns flag.ErrHelp.
func Parse(args []string, output io.Writer) (*Config, error) {
	cfg := &Config{}

	flags := flag.NewFlagSet("micfeed", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() { Usage(output, flags) }

	flags.StringVar(&cfg.PipeDir, "pipe-dir", envStr("PIPE_DIR", ""), "Directory for the FIFO (Unix only, default: system temp dir)")
	flags.StringVar(&cfg.LogFile, "log-file", envStr("LOG_FILE", "micfeed.log"), "Log file path")
	flags.BoolVar(&cfg.Debug, "debug", envBool("DEBUG", false), "Enable debug logging")
	flags.BoolVar(&cfg.NoTUI, "no-tui", envBool("NO_TUI", false), "Disable TUI, use streaming logs instead")
	flags.StringVar(&cfg.Script, "script", envStr("SCRIPT", ""), "JSON script replacing the default test cycle")
	flags.StringVar(&cfg.Clip, "clip", envStr("CLIP", ""), "MP3, FLAC or raw PCM file appended to each cycle")
	flags.BoolVar(&cfg.Monitor, "monitor", envBool("MONITOR", false), "Play the stream on the local speakers")
	flags.IntVar(&cfg.Volume, "volume", envInt("VOLUME", 100), "Local monitor volume (0-100)")
	flags.StringVar(&cfg.HTTPAddr, "http-addr", envStr("HTTP_ADDR", ""), "Address for status, metrics and the PCM tap (e.g. :8930)")
	flags.BoolVar(&cfg.MDNS, "mdns", envBool("MDNS", false), "Advertise the HTTP address over mDNS")
	flags.BoolVar(&cfg.Discover, "discover", false, "List producers advertised on the LAN and exit")
	flags.StringVar(&cfg.Name, "name", envStr("NAME", ""), "Instance name for mDNS (default: hostname-micfeed)")

	pinArg := envStr("PIN", "")

	for _, arg := range args {
		if IsHelp(arg) {
			flags.Usage()
			return nil, flag.ErrHelp
		}
	}

	var positional []string

	// a leading negative pin would otherwise parse as an unknown flag
	if len(args) > 0 {
		if _, err := strconv.Atoi(args[0]); err == nil {
			positional, args = append(positional, args[0]), args[1:]
		}
	}

	// the pin may come before or after the flags
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if rest := flags.Args(); len(rest) > 0 {
		positional = append(positional, rest[0])
		if err := flags.Parse(rest[1:]); err != nil {
			return nil, err
		}
		positional = append(positional, flags.Args()...)
	}

	if len(positional) > 0 {
		pinArg = positional[0]
		for _, extra := range positional[1:] {
			cfg.Warnings = append(cfg.Warnings, fmt.Errorf("ignoring extra argument %q", extra))
		}
	}

	if pinArg != "" {
		pin, err := ParsePin(pinArg)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, err)
		}
		cfg.Pin = pin
	}

	if cfg.Volume < 0 || cfg.Volume > 100 {
		cfg.Warnings = append(cfg.Warnings, fmt.Errorf("volume %d outside 0-100, using 100", cfg.Volume))
		cfg.Volume = 100
	}

	if cfg.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-micfeed", hostname)
	}

	return cfg, nil
}

// Usage prints the help text
func Usage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintf(w, "%s %s\n\n", version.Product, version.Version)
	fmt.Fprintln(w, "Usage: micfeed [flags] [pin_number]")
	fmt.Fprintln(w, "  pin_number: Virtual microphone pin number (default: 0)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Creates a named pipe and streams test audio into it.")
	fmt.Fprintln(w, "Make sure the Virtual Audio Driver is installed and running.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	flags.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Every flag can also be set with %s<FLAG> (e.g. %sPIPE_DIR), or in a .env file.\n", EnvPrefix, EnvPrefix)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
