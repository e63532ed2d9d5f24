package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Family is the transport family selected by -s (spec.md §6).
type Family int

const (
	Unix Family = iota
	IPv4
	IPv6
)

func (f Family) String() string {
	switch f {
	case Unix:
		return "unix"
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Config is the external collaborator spec.md §1 calls out as
// "explicitly out of scope" for the core (argument parsing), but which
// the connection server still needs concretely. Defaults follow
// spec.md §4.5: 120 second per-accept timeout.
type Config struct {
	Family  Family
	Path    string
	IP      string
	Port    uint16
	Threads int
	Timeout time.Duration

	AdminAddr string // empty disables the admin HTTP surface

	AuditBrokers []string // empty disables the audit event stream
	AuditTopic   string
}

var (
	ErrMissingFamily  = errors.New("config: missing -s address_family")
	ErrMissingThreads = errors.New("config: missing -t thread_pool_size")
	ErrInvalidFamily  = errors.New("config: invalid address_family")
	ErrInvalidOptions = errors.New("config: invalid option(s) for address_family")
	ErrInvalidThreads = errors.New("config: invalid thread_pool_size")
	ErrDuplicateFlag  = errors.New("config: option already set")
)

const defaultTimeout = 120 * time.Second

// Usage is printed for -h, matching
// original_source/demos-crypto/src/main.cpp's usage text.
const Usage = `Usage: cryptoserver -s unix <path> -t <threads>
                    -s ipv4 [<ip>] <port> -t <threads>
                    -s ipv6 [<ip>] <port> -t <threads>`

// ParseArgs hand-parses the CLI grammar of spec.md §6. A Go stdlib
// flag.FlagSet cannot express "-s swallows 1-2 following positional
// tokens before the next flag", so this ports
// original_source/demos-crypto/src/main.cpp's getopt loop directly
// into a manual scan of args, the way the teacher's own main.go hand
// parses its own (simpler) flags with the stdlib flag package where
// that grammar suffices and falls back to manual scanning here where
// it does not.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{Threads: 0, Timeout: defaultTimeout}
	familySet := false
	threadsSet := false

	i := 0
	for i < len(args) {
		switch args[i] {
		case "-h", "--help":
			return nil, ErrShowUsage
		case "-s":
			if familySet {
				return nil, fmt.Errorf("%w: -s", ErrDuplicateFlag)
			}
			i++
			if i >= len(args) {
				return nil, ErrInvalidFamily
			}
			switch args[i] {
			case "unix":
				cfg.Family = Unix
			case "ipv4":
				cfg.Family = IPv4
			case "ipv6":
				cfg.Family = IPv6
			default:
				return nil, fmt.Errorf("%w: %s", ErrInvalidFamily, args[i])
			}
			i++

			var opts []string
			for i < len(args) && !isFlag(args[i]) {
				opts = append(opts, args[i])
				i++
			}
			if err := cfg.applyFamilyOptions(opts); err != nil {
				return nil, err
			}
			familySet = true
		case "-t":
			if threadsSet {
				return nil, fmt.Errorf("%w: -t", ErrDuplicateFlag)
			}
			i++
			if i >= len(args) {
				return nil, ErrInvalidThreads
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: %s", ErrInvalidThreads, args[i])
			}
			cfg.Threads = n
			threadsSet = true
			i++
		case "-admin":
			i++
			if i >= len(args) {
				return nil, errors.New("config: -admin requires an address")
			}
			cfg.AdminAddr = args[i]
			i++
		default:
			return nil, fmt.Errorf("config: invalid option: %s", args[i])
		}
	}

	if !familySet {
		return nil, ErrMissingFamily
	}
	if !threadsSet {
		return nil, ErrMissingThreads
	}
	return cfg, nil
}

// ErrShowUsage is returned by ParseArgs for -h/--help so callers can
// print Usage and exit 0 instead of treating it as a failure.
var ErrShowUsage = errors.New("config: usage requested")

func isFlag(s string) bool {
	return len(s) >= 2 && s[0] == '-' && (s[1] < '0' || s[1] > '9')
}

func (c *Config) applyFamilyOptions(opts []string) error {
	switch c.Family {
	case Unix:
		if len(opts) != 1 {
			return ErrInvalidOptions
		}
		c.Path = opts[0]
		return nil
	case IPv4, IPv6:
		if len(opts) < 1 || len(opts) > 2 {
			return ErrInvalidOptions
		}
		portStr := opts[0]
		if len(opts) == 2 {
			c.IP = opts[0]
			portStr = opts[1]
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOptions, portStr)
		}
		c.Port = uint16(port)
		return nil
	default:
		return ErrInvalidFamily
	}
}
