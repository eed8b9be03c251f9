package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeWhitelist(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "whitelist.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write whitelist: %v", err)
	}

	return path
}

func TestLoadParsesWhitelistLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     string
		wantTenants []Tenant
	}{
		{
			name:    "named and bare credentials",
			content: "alice, key-alice\nkey-bob\n",
			wantTenants: []Tenant{
				{Name: "alice", Credential: "key-alice"},
				{Name: "key-bob", Credential: "key-bob"},
			},
		},
		{
			name:    "comments and blank lines are skipped",
			content: "# staging bots\n\n  \nalice, key-alice\n",
			wantTenants: []Tenant{
				{Name: "alice", Credential: "key-alice"},
			},
		},
		{
			name:    "duplicate credentials collapse to first name",
			content: "alice, key-1\nalicia, key-1\n",
			wantTenants: []Tenant{
				{Name: "alice", Credential: "key-1"},
			},
		},
		{
			name:    "surrounding whitespace is trimmed",
			content: "  carol ,  key-carol  \n",
			wantTenants: []Tenant{
				{Name: "carol", Credential: "key-carol"},
			},
		},
		{
			name:    "tenants are sorted by display name",
			content: "zoe, key-z\nanna, key-a\n",
			wantTenants: []Tenant{
				{Name: "anna", Credential: "key-a"},
				{Name: "zoe", Credential: "key-z"},
			},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			reg := Load(writeWhitelist(t, testCase.content), slog.Default())

			tenants := reg.Tenants()
			if len(tenants) != len(testCase.wantTenants) {
				t.Fatalf("tenants = %v, want %v", tenants, testCase.wantTenants)
			}
			for index, want := range testCase.wantTenants {
				if tenants[index] != want {
					t.Fatalf("tenant[%d] = %v, want %v", index, tenants[index], want)
				}
			}
		})
	}
}

func TestLoadUnreadableSourceYieldsEmptyRegistry(t *testing.T) {
	t.Parallel()

	reg := Load(filepath.Join(t.TempDir(), "missing.txt"), slog.Default())

	if reg.Len() != 0 {
		t.Fatalf("len = %d, want 0", reg.Len())
	}
	if _, ok := reg.Lookup("any"); ok {
		t.Fatal("empty registry resolved a credential")
	}
}

func TestLookupUsesCredentialAsIdentityKey(t *testing.T) {
	t.Parallel()

	reg := Load(writeWhitelist(t, "alice, key-alice\n"), slog.Default())

	tenant, ok := reg.Lookup("key-alice")
	if !ok {
		t.Fatal("credential not found")
	}
	if tenant.Name != "alice" {
		t.Fatalf("name = %q, want alice", tenant.Name)
	}

	if _, ok := reg.Lookup("alice"); ok {
		t.Fatal("display name must not authorize")
	}
}
