package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-ldaplookup/internal/config"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

var (
	searchContext string
	searchSet     []string
	searchVars    []string
	searchOutput  string
)

var searchCmd = &cobra.Command{
	Use:   "search [term...]",
	Short: "Run one search per term and print the shaped records",
	Long: `Runs one LDAP search per term and prints the records. Each term is bound
to .term in the search templates; without terms a single search runs.

Examples:
  ldaplookup search --config lookup.yaml --context user_nophoto alice bob
  ldaplookup search --set url=ldap://ldap.example.com --set base=dc=example,dc=com \
    --set 'filter=(cn={{ filter_escape .term }})' --set 'value=[cn, mail]' alice
  ldaplookup search --config lookup.yaml --context group_members --set key=dn --output yaml devel`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchContext, "context", "c", "", "context to apply")
	searchCmd.Flags().StringArrayVar(&searchSet, "set", nil, "override a configuration field (field=value, repeatable)")
	searchCmd.Flags().StringArrayVar(&searchVars, "var", nil, "set a template variable (name=value, repeatable)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "json", "output format: json or yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchOutput != "json" && searchOutput != "yaml" {
		return fmt.Errorf("unsupported output format %q", searchOutput)
	}

	file, defaults, err := loadConfig()
	if err != nil {
		return err
	}

	overrides, err := config.ParseOverrides(searchSet)
	if err != nil {
		return fmt.Errorf("--set: %w", err)
	}
	if searchContext != "" {
		overrides[lookup.KeyContext] = searchContext
	}

	vars, err := config.ParseAssignments(searchVars)
	if err != nil {
		return fmt.Errorf("--var: %w", err)
	}
	variables := make(map[string]any, len(file.Variables)+len(vars))
	for k, v := range file.Variables {
		variables[k] = v
	}
	for k, v := range vars {
		variables[k] = v
	}

	callArgs := []any{overrides}
	for _, term := range args {
		callArgs = append(callArgs, term)
	}

	engine := lookup.NewEngine(newDirectory(),
		lookup.WithDefaults(defaults),
		lookup.WithContexts(file.ContextTable()),
		lookup.WithTimeout(file.Client.Timeout),
		lookup.WithKerberos(file.Client.Kerberos()),
	)

	logger.Debug("running lookup", "context", searchContext, "terms", args)

	records, err := engine.Lookup(cmd.Context(), lookup.Call{
		Args:      callArgs,
		Variables: variables,
	})
	if err != nil {
		logger.Error("lookup failed", "error", err)
		return err
	}

	logger.Info("lookup completed", "records", len(records))

	return writeRecords(cmd.OutOrStdout(), searchOutput, records)
}

// writeRecords prints records as JSON or YAML. Binary values are base64
// encoded.
func writeRecords(w io.Writer, format string, records []any) error {
	printable := printableValue(records)

	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(printable); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(printable); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}

func printableValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = printableValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = printableValue(elem)
		}
		return out
	default:
		return v
	}
}
