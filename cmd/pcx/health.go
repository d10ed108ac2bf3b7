package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the regression backend",
		Long: `Query the backend health endpoint and report whether the model and scaler
are loaded.

Examples:
  pcx health
  PREDICTOR_HEALTH_ENDPOINT=http://models:5000/health pcx health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}

			status, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend Status: %s\n", status.Status)
			fmt.Fprintf(out, "Model Loaded:   %t\n", status.ModelLoaded)
			fmt.Fprintf(out, "Scaler Loaded:  %t\n", status.ScalerLoaded)
			fmt.Fprintf(out, "Endpoint:       %s\n", client.Config().HealthEndpoint)
			if !status.Healthy {
				return fmt.Errorf("backend is unhealthy")
			}
			return nil
		},
	}
}
