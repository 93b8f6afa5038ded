package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5ConfPath = "/etc/krb5.conf"

// performKerberosAuth performs a SASL GSSAPI bind using the ambient credential cache.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg KerberosConfig, host string) error {
	krb5confPath := resolveKrb5ConfPath(cfg)
	ccachePath := resolveCCachePath(cfg)

	if !fileExists(krb5confPath) {
		LogKerberosEvent(ctx, "credentials_failed", map[string]any{"krb5_conf": krb5confPath})
		return fmt.Errorf("kerberos configuration file not found at %s: "+
			"set kerberos_config or KRB5_CONFIG to a valid krb5.conf", krb5confPath)
	}
	if !fileExists(ccachePath) {
		LogKerberosEvent(ctx, "credentials_failed", map[string]any{"ccache": ccachePath})
		return fmt.Errorf("kerberos credential cache not found at %s: "+
			"obtain a ticket with kinit or set kerberos_ccache/KRB5CCNAME", ccachePath)
	}

	gssapiClient, err := gssapi.NewClientFromCCache(ccachePath, krb5confPath, krb5client.DisablePAFXFAST(true))
	if err != nil {
		LogKerberosEvent(ctx, "credentials_failed", map[string]any{
			"ccache": ccachePath,
			"error":  err.Error(),
		})
		return fmt.Errorf("failed to load kerberos credential cache: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	LogKerberosEvent(ctx, "credentials_loaded", map[string]any{
		"ccache":    ccachePath,
		"krb5_conf": krb5confPath,
	})

	spn, err := buildServicePrincipal(cfg, host)
	if err != nil {
		return err
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		LogKerberosEvent(ctx, "authentication_failed", map[string]any{
			"spn":   spn,
			"error": err.Error(),
		})
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// buildServicePrincipal returns the configured SPN, or ldap/<host>.
func buildServicePrincipal(cfg KerberosConfig, host string) (string, error) {
	if cfg.SPN != "" {
		return cfg.SPN, nil
	}

	if host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	// SPN never includes the port
	if colonPos := strings.Index(host, ":"); colonPos != -1 {
		host = host[:colonPos]
	}

	return fmt.Sprintf("ldap/%s", host), nil
}

// resolveKrb5ConfPath returns the krb5.conf path from config, KRB5_CONFIG or the system default.
func resolveKrb5ConfPath(cfg KerberosConfig) string {
	if cfg.ConfigPath != "" {
		return cfg.ConfigPath
	}
	if path := os.Getenv("KRB5_CONFIG"); path != "" {
		// KRB5_CONFIG may list several files; the first one is used
		return strings.Split(path, ":")[0]
	}
	return defaultKrb5ConfPath
}

// resolveCCachePath returns the credential cache path from config, KRB5CCNAME or the default location.
func resolveCCachePath(cfg KerberosConfig) string {
	if cfg.CCachePath != "" {
		return strings.TrimPrefix(cfg.CCachePath, "FILE:")
	}
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
