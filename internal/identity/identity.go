package identity

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lockersync/internal/config"
	"lockersync/internal/locker"
	"lockersync/internal/services"
)

// Source records where a resolved identity came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourceStored   Source = "stored"
	SourceHardware Source = "hardware"
	SourceRandom   Source = "random"
)

const nameSuffix = " (lockersync)"

var idPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// Option customises Resolve.
type Option func(*resolver)

type resolver struct {
	hardwareAddr func() (net.HardwareAddr, error)
	hostname     func() (string, error)
}

// WithHardwareAddr overrides how the device hardware address is discovered.
func WithHardwareAddr(fn func() (net.HardwareAddr, error)) Option {
	return func(r *resolver) {
		r.hardwareAddr = fn
	}
}

// WithHostname overrides the hostname lookup used for the default name.
func WithHostname(fn func() (string, error)) Option {
	return func(r *resolver) {
		r.hostname = fn
	}
}

// Resolve returns the uploader identity for cfg, minting and persisting one
// on first use. Creation holds a file lock so concurrent runs agree on one id.
func Resolve(cfg *config.Config, opts ...Option) (locker.Identity, Source, error) {
	r := &resolver{hardwareAddr: firstHardwareAddr, hostname: os.Hostname}
	for _, opt := range opts {
		opt(r)
	}

	name := strings.TrimSpace(cfg.Uploader.Name)
	if name == "" {
		name = r.defaultName()
	}
	if cfg.Uploader.ID != "" {
		id := locker.Identity{ID: strings.ToUpper(cfg.Uploader.ID), Name: name}
		return id, SourceConfig, Validate(id)
	}

	store := NewFileStore(cfg.IdentityPath())
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		return locker.Identity{}, "", services.Wrap(services.ErrConfiguration, "identity", "prepare", "create state directory", err)
	}
	lock := flock.New(store.Path() + ".lock")
	if err := lock.Lock(); err != nil {
		return locker.Identity{}, "", fmt.Errorf("lock uploader identity: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	stored, err := store.Load()
	if err != nil {
		return locker.Identity{}, "", services.Wrap(services.ErrConfiguration, "identity", "load", "stored identity is unreadable", err)
	}
	if stored.ID != "" {
		if cfg.Uploader.Name != "" || stored.Name == "" {
			stored.Name = name
		}
		if err := Validate(stored); err != nil {
			return locker.Identity{}, "", err
		}
		return stored, SourceStored, nil
	}

	id, source := locker.Identity{Name: name}, SourceHardware
	if addr, err := r.hardwareAddr(); err == nil && usable(addr) {
		id.ID = FormatID(addr)
	} else {
		id.ID, source = randomID(), SourceRandom
	}
	if err := store.Save(id); err != nil {
		return locker.Identity{}, "", err
	}
	return id, source, nil
}

// Validate checks the id format and that a name is present.
func Validate(id locker.Identity) error {
	if !idPattern.MatchString(id.ID) {
		return services.Wrap(services.ErrValidation, "identity", "validate",
			fmt.Sprintf("uploader id %q must look like AA:BB:CC:DD:EE:FF", id.ID), nil)
	}
	if strings.TrimSpace(id.Name) == "" {
		return services.Wrap(services.ErrValidation, "identity", "validate", "uploader name is empty", nil)
	}
	return nil
}

// FormatID renders a 6-byte hardware address as an upper-case, colon-separated id.
func FormatID(addr net.HardwareAddr) string {
	return strings.ToUpper(addr.String())
}

func (r *resolver) defaultName() string {
	host, err := r.hostname()
	host = strings.TrimSpace(host)
	if err != nil || host == "" {
		host = "unknown host"
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return cases.Title(language.Und).String(host) + nameSuffix
}

func usable(addr net.HardwareAddr) bool {
	return len(addr) == 6 && !bytes.Equal(addr, make(net.HardwareAddr, 6))
}

func firstHardwareAddr() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || !usable(iface.HardwareAddr) {
			continue
		}
		return iface.HardwareAddr, nil
	}
	return nil, fmt.Errorf("no hardware address found")
}

// randomID derives a unicast, locally administered address from a random uuid.
func randomID() string {
	u := uuid.New()
	addr := net.HardwareAddr(append([]byte(nil), u[:6]...))
	addr[0] = (addr[0] | 0x02) &^ 0x01
	return FormatID(addr)
}
