package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

// Test environment configuration constants.
const (
	EnvTestURL    = "LDAPLOOKUP_TEST_URL"
	EnvTestBase   = "LDAPLOOKUP_TEST_BASE"
	EnvTestBindDN = "LDAPLOOKUP_TEST_BINDDN"
	EnvTestBindPW = "LDAPLOOKUP_TEST_BINDPW"
	EnvTestFilter = "LDAPLOOKUP_TEST_FILTER"

	DefaultTestFilter = "(objectClass=*)"
)

// TestConfig holds the live directory used by acceptance tests.
type TestConfig struct {
	URL    string
	Base   string
	BindDN string
	BindPW string
	Filter string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	return &TestConfig{
		URL:    os.Getenv(EnvTestURL),
		Base:   os.Getenv(EnvTestBase),
		BindDN: os.Getenv(EnvTestBindDN),
		BindPW: os.Getenv(EnvTestBindPW),
		Filter: getEnvWithDefault(EnvTestFilter, DefaultTestFilter),
	}
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckLive validates that a live directory is configured.
func testAccPreCheckLive(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()
	if config.URL == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestURL)
	}
	if config.Base == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestBase)
	}
	return config
}

// testAccProviderConfig generates provider configuration for the live directory.
func testAccProviderConfig(config *TestConfig) string {
	var b strings.Builder
	b.WriteString("provider \"ldaplookup\" {\n")
	fmt.Fprintf(&b, "  url  = %q\n", config.URL)
	fmt.Fprintf(&b, "  base = %q\n", config.Base)
	if config.BindDN != "" {
		fmt.Fprintf(&b, "  binddn = %q\n", config.BindDN)
		fmt.Fprintf(&b, "  bindpw = %q\n", config.BindPW)
	}
	b.WriteString("}\n")
	return b.String()
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// testAccProtoV6ProviderFactories serves the provider against the real
// directory client.
var testAccProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"ldaplookup": providerserver.NewProtocol6WithError(New("test")()),
}

// testProviderFactories serves the provider against directory.
func testProviderFactories(directory lookup.Directory) map[string]func() (tfprotov6.ProviderServer, error) {
	return map[string]func() (tfprotov6.ProviderServer, error){
		"ldaplookup": providerserver.NewProtocol6WithError(NewWithDirectory("test", directory)()),
	}
}

// fakeDirectory answers searches from an in-memory entry list keyed by
// filter.
type fakeDirectory struct {
	mu       sync.Mutex
	entries  map[string][]*ldap.Entry
	opened   []ldap.ConnectionConfig
	searches []ldap.SearchRequest
}

func newFakeDirectory(entries map[string][]*ldap.Entry) *fakeDirectory {
	return &fakeDirectory{entries: entries}
}

func (d *fakeDirectory) Open(_ context.Context, config *ldap.ConnectionConfig) (ldap.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, *config)
	return &fakeSession{dir: d}, nil
}

type fakeSession struct {
	dir *fakeDirectory
}

func (s *fakeSession) Search(_ context.Context, req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	s.dir.searches = append(s.dir.searches, *req)
	return s.dir.entries[req.Filter], nil
}

func (s *fakeSession) Close() error {
	return nil
}

func testEntry(dn string, attrs map[string][]string) *ldap.Entry {
	entry := &ldap.Entry{DN: dn}
	for name, values := range attrs {
		raw := make([][]byte, len(values))
		for i, v := range values {
			raw[i] = []byte(v)
		}
		entry.Attributes = append(entry.Attributes, ldap.Attribute{Name: name, Values: raw})
	}
	return entry
}
