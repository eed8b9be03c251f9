// Package registry loads the static credential whitelist that defines the
// tenant set for one process lifetime.
package registry

import (
	"bufio"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Tenant is one credential-identified owner of a memory namespace.
type Tenant struct {
	// Name is the cosmetic display name. It equals the credential when the
	// whitelist line carries no name.
	Name string
	// Credential is the identity key used for authorization.
	Credential string
}

// Registry is an immutable credential to tenant mapping.
//
// The Memory API loads it once at process start; the worker reloads it at
// the top of every cycle so whitelist changes apply without restart.
type Registry struct {
	byCredential map[string]Tenant
	ordered      []Tenant
}

// Load reads a whitelist file into a Registry.
//
// Lines are either "name, credential" or a bare credential; blank lines and
// "#" comments are skipped. Duplicate credentials collapse to one tenant
// with the first display name. An unreadable source yields an empty registry
// and a warning, never an error: an empty registry simply rejects everyone.
func Load(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &Registry{byCredential: make(map[string]Tenant)}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("could not load whitelist", "path", path, "error", err)
		return reg
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, credential := parseLine(line)
		if credential == "" {
			continue
		}
		if _, exists := reg.byCredential[credential]; exists {
			continue
		}
		tenant := Tenant{Name: name, Credential: credential}
		reg.byCredential[credential] = tenant
		reg.ordered = append(reg.ordered, tenant)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("could not read whitelist", "path", path, "error", err)
	}

	sort.Slice(reg.ordered, func(i, j int) bool {
		return reg.ordered[i].Name < reg.ordered[j].Name
	})

	return reg
}

// parseLine splits one whitelist line into display name and credential.
func parseLine(line string) (string, string) {
	if name, credential, found := strings.Cut(line, ","); found {
		return strings.TrimSpace(name), strings.TrimSpace(credential)
	}

	return line, line
}

// Lookup resolves a credential to its tenant.
func (r *Registry) Lookup(credential string) (Tenant, bool) {
	tenant, exists := r.byCredential[credential]
	return tenant, exists
}

// Tenants returns all tenants in display-name order.
func (r *Registry) Tenants() []Tenant {
	return append([]Tenant(nil), r.ordered...)
}

// Len reports the number of distinct tenants.
func (r *Registry) Len() int {
	return len(r.byCredential)
}
