package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/formrules/expression"
	"github.com/liamcoop/formrules/oracle"
	"github.com/liamcoop/formrules/rules"
)

// errInvalidRules is returned by validate when problems were found
var errInvalidRules = errors.New("rule set is invalid")

// RuleFile is the input of the fields and validate commands
type RuleFile struct {
	Fields []rules.FieldDef `json:"fields"`
	Rules  []rules.Rule     `json:"rules"`
}

// DocumentFile is the input of the documents command
type DocumentFile struct {
	Rules []rules.DocumentRule `json:"rules"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ruleeval",
		Short:         "evaluate form rules offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newFieldsCmd(),
		newDocumentsCmd(),
		newConstraintsCmd(),
		newExprCmd(),
		newValidateCmd(),
	)
	return root
}

func newFieldsCmd() *cobra.Command {
	var (
		rulesPath, valuesPath string
		contextID, oracleURL  string
		oracleTimeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "compute hidden fields, required fields and computed values",
		Long: `Fields runs the rule cascade over a rule file and a value snapshot.

SQL conditions are false unless --oracle-url points at an oracle endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file RuleFile
			if err := loadFile(rulesPath, &file); err != nil {
				return err
			}
			values, err := loadValues(valuesPath)
			if err != nil {
				return err
			}

			var result rules.Result
			if oracleURL != "" && rules.HasSQLConditions(file.Rules) {
				client := oracle.NewClient(oracleURL, oracleTimeout)
				result = rules.EvaluateWithOracle(cmd.Context(), client, contextID, file.Rules, file.Fields, values)
			} else {
				result = rules.Evaluate(file.Rules, file.Fields, values)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule file with fields and rules (required)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "value snapshot file")
	cmd.Flags().StringVar(&contextID, "context-id", "", "context id passed to the oracle")
	cmd.Flags().StringVar(&oracleURL, "oracle-url", "", "oracle endpoint for SQL conditions")
	cmd.Flags().DurationVar(&oracleTimeout, "oracle-timeout", oracle.DefaultTimeout, "timeout per oracle call")
	cmd.MarkFlagRequired("rules")
	return cmd
}

func newDocumentsCmd() *cobra.Command {
	var rulesPath, valuesPath string

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "compute hidden and required document types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file DocumentFile
			if err := loadFile(rulesPath, &file); err != nil {
				return err
			}
			values, err := loadValues(valuesPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rules.EvaluateDocuments(file.Rules, values))
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "document rule file (required)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "value snapshot file")
	cmd.MarkFlagRequired("rules")
	return cmd
}

func newConstraintsCmd() *cobra.Command {
	var configPath, valuesPath string

	cmd := &cobra.Command{
		Use:   "constraints",
		Short: "resolve min, max and step for a numeric field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg rules.NumberConstraintConfig
			if err := loadFile(configPath, &cfg); err != nil {
				return err
			}
			values, err := loadValues(valuesPath)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rules.ResolveConstraints(&cfg, values))
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "number constraint config file (required)")
	cmd.Flags().StringVar(&valuesPath, "values", "", "value snapshot file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newExprCmd() *cobra.Command {
	var valuesPath string

	cmd := &cobra.Command{
		Use:   "expr <formula>",
		Short: "evaluate a formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := loadValues(valuesPath)
			if err != nil {
				return err
			}
			var out struct {
				Result *float64 `json:"result"`
			}
			if v, ok := expression.Evaluate(args[0], values); ok {
				out.Result = &v
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "", "value snapshot file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "check a rule file for authoring mistakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file RuleFile
			if err := loadFile(rulesPath, &file); err != nil {
				return err
			}
			if err := rules.ValidateRuleSet(file.Rules, file.Fields); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				return errInvalidRules
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule file with fields and rules (required)")
	cmd.MarkFlagRequired("rules")
	return cmd
}

// loadFile decodes a YAML or JSON file into v. YAML is decoded generically
// and re-encoded as JSON so the rules types only need JSON tags.
func loadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// loadValues reads a value snapshot; no path means an empty snapshot
func loadValues(path string) (rules.Values, error) {
	values := rules.Values{}
	if path == "" {
		return values, nil
	}
	if err := loadFile(path, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
