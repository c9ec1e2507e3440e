package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Devliang24/casecraft/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured LLM providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers and their limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := provider.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-10s %-24s %8s %7s %-10s\n", "NAME", "MODEL", "WORKERS", "STREAM", "ROLE")
		for _, p := range cfg.Providers {
			workers, err := provider.MaxWorkersFor(p.Name, p)
			if err != nil {
				return err
			}
			role := p.Role
			if role == "" {
				role = "-"
			}
			fmt.Fprintf(out, "%-10s %-24s %8d %7t %-10s\n", p.Name, p.Model, workers, p.Stream, role)
		}
		return nil
	},
}

var providersHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run a health check against every configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := provider.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		registry := provider.Default()
		out := cmd.OutOrStdout()
		healthy := 0

		for _, p := range cfg.Providers {
			client, err := registry.Get(p.Name, p)
			if err != nil {
				fmt.Fprintf(out, "%-10s error: %v\n", p.Name, err)
				continue
			}

			checkCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			err = client.HealthCheck(checkCtx)
			cancel()

			if err != nil {
				fmt.Fprintf(out, "%-10s unhealthy: %v\n", p.Name, err)
				continue
			}
			fmt.Fprintf(out, "%-10s ok\n", p.Name)
			healthy++
		}

		fmt.Fprintf(out, "\n%d/%d providers healthy\n", healthy, len(cfg.Providers))
		return nil
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersHealthCmd)
	rootCmd.AddCommand(providersCmd)
}
