package allowlist

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/halcyard/webwrap/internal/storage"
	"github.com/halcyard/webwrap/internal/validate"
)

// ErrInvalidHost is returned when an entry is not a plain host name.
var ErrInvalidHost = errors.New("invalid host")

// Keeper manages the list of extra hosts the viewer may navigate to.
// The target host is always allowed and never stored here.
type Keeper struct {
	Storage *storage.Storage
}

// NewKeeper creates a new Keeper backed by the state file at storagePath.
func NewKeeper(storagePath string) (*Keeper, error) {
	s, err := storage.NewStorage(storagePath)
	if err != nil {
		return nil, err
	}

	return &Keeper{Storage: s}, nil
}

// View prints the current allowlist to the provided writer.
func (k *Keeper) View(w io.Writer) {
	if len(k.Storage.Data.AllowedHosts) == 0 {
		fmt.Fprintln(w, "Allowlist is empty.")
		return
	}

	for _, host := range k.Storage.Data.AllowedHosts {
		fmt.Fprintf(w, "  - %s\n", host)
	}
}

// Add normalizes and adds a host to the allowlist.
func (k *Keeper) Add(raw string) error {
	host, err := Normalize(raw)
	if err != nil {
		return err
	}
	for _, existing := range k.Storage.Data.AllowedHosts {
		if existing == host {
			return nil
		}
	}
	logrus.Debugf("Adding to allowlist: host=%s", host)
	k.Storage.Data.AllowedHosts = append(k.Storage.Data.AllowedHosts, host)
	return k.Storage.Save()
}

// Remove deletes a host from the allowlist. Removing an absent host is not
// an error.
func (k *Keeper) Remove(raw string) error {
	host, err := Normalize(raw)
	if err != nil {
		return err
	}
	hosts := k.Storage.Data.AllowedHosts
	kept := hosts[:0]
	for _, existing := range hosts {
		if existing != host {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(hosts) {
		return nil
	}
	logrus.Debugf("Removing from allowlist: host=%s", host)
	k.Storage.Data.AllowedHosts = kept
	return k.Storage.Save()
}

// Reset clears the allowlist.
func (k *Keeper) Reset() error {
	logrus.Debug("Resetting allowlist")
	k.Storage.Data.AllowedHosts = nil
	return k.Storage.Save()
}

// Allows reports whether host matches any allowlist entry.
func (k *Keeper) Allows(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, entry := range k.Storage.Data.AllowedHosts {
		if matches(entry, host) {
			return true
		}
	}
	return false
}

// Normalize lowercases a host entry, strips any port, and validates it.
// A leading "*." marks a wildcard covering the whole subdomain tree.
func Normalize(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return "", fmt.Errorf("%w: empty entry", ErrInvalidHost)
	}
	if strings.Contains(host, "/") || strings.Contains(host, "://") {
		return "", fmt.Errorf("%w: %q must be a bare host, not a URL", ErrInvalidHost, raw)
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	name := strings.TrimPrefix(host, "*.")
	if err := validate.Var(name, "hostname_rfc1123"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHost, raw)
	}
	return host, nil
}

// matches reports whether host is covered by a normalized entry.
// "*.example.org" covers subdomains of example.org but not example.org itself.
func matches(entry, host string) bool {
	if suffix, ok := strings.CutPrefix(entry, "*."); ok {
		return strings.HasSuffix(host, "."+suffix)
	}
	return entry == host
}
