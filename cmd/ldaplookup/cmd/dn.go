package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

var hostnameToDNCmd = &cobra.Command{
	Use:   "hostname-to-dn <hostname>",
	Short: "Convert a dotted hostname to a DN of dc components",
	Example: `  ldaplookup hostname-to-dn some.corp.com
  # dc=some,dc=corp,dc=com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return fmt.Errorf("hostname cannot be empty")
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), ldap.HostnameToDN(args[0]))
		return err
	},
}

var dnToHostnameCmd = &cobra.Command{
	Use:   "dn-to-hostname <dn>",
	Short: "Convert a DN of dc components to a dotted hostname",
	Example: `  ldaplookup dn-to-hostname DC=some,DC=corp,DC=com
  # some.corp.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, err := ldap.DNToHostname(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hostname)
		return err
	},
}

func init() {
	rootCmd.AddCommand(hostnameToDNCmd)
	rootCmd.AddCommand(dnToHostnameCmd)
}
