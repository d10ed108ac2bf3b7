package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pricecast/internal/features"
	"github.com/fyrsmithlabs/pricecast/internal/predictor"
)

type predictOutput struct {
	Prediction string       `json:"prediction,omitempty"`
	Amount     *json.Number `json:"amount,omitempty"`
	Thousands  *float64     `json:"thousands,omitempty"`
	Error      string       `json:"error,omitempty"`
	Kind       string       `json:"kind,omitempty"`
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		policy string
	)
	values := make(map[string]*string, features.Count)

	cmd := &cobra.Command{
		Use:   "predict [13 values in order]",
		Short: "Predict a house price",
		Long: `Submit the thirteen housing features and print the estimated price.

Values are given either positionally in canonical order
(` + strings.Join(features.Names(), " ") + `)
or with one flag per feature. Flags override positional values.

Examples:
  # Positional
  pcx predict 0.00632 18 2.31 0 0.538 6.575 65.2 4.09 1 296 15.3 396.9 4.98

  # Named, remaining fields default to 0 under the coerce policy
  pcx predict --rm 6.5 --lstat 4.98

  # Reject unparseable input instead of coercing it
  pcx predict --policy reject --crim abc`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != features.Count {
				return fmt.Errorf("expected 0 or %d positional values, got %d", features.Count, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			p := a.cfg.Policy()
			if cmd.Flags().Changed("policy") {
				if p, err = features.ParsePolicy(policy); err != nil {
					return err
				}
			}

			raw := make(map[string]string, features.Count)
			for i, name := range features.Names() {
				if len(args) == features.Count {
					raw[name] = args[i]
				}
				if cmd.Flags().Changed(strings.ToLower(name)) {
					raw[name] = *values[name]
				}
			}

			res, err := predictor.NewForm(client, p).Submit(cmd.Context(), raw)
			if err != nil {
				return err
			}
			return printResult(cmd, res, asJSON)
		},
	}

	for _, name := range features.Names() {
		values[name] = cmd.Flags().String(strings.ToLower(name), "", features.Describe(name))
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&policy, "policy", "", "validation policy: coerce or reject (default from config)")
	return cmd
}

// printResult writes the display state. A failure is printed once and
// returned as a displayedError so the process exits non-zero.
func printResult(cmd *cobra.Command, res predictor.Result, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		var po predictOutput
		if res.Estimate != nil {
			amount := json.Number(res.Estimate.Amount.String())
			thousands := res.Estimate.Thousands
			po.Prediction = res.Estimate.Display
			po.Amount = &amount
			po.Thousands = &thousands
		}
		if res.Failure != nil {
			po.Error = res.Failure.Message
			po.Kind = string(res.Failure.Kind)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(po); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else if res.Estimate != nil {
		fmt.Fprintf(out, "Estimated price: %s\n", res.Estimate.Display)
	} else if res.Failure != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Failure.Message)
	}

	if res.Failure != nil {
		return &displayedError{err: res.Failure}
	}
	return nil
}
