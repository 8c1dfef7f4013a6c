package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon is answering on its socket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()

		resp, err := newClient().Ping(ctx)
		if err != nil {
			return fmt.Errorf("daemon not reachable at %s: %w", cfg.Socket, err)
		}
		if ok, err := printStructured(os.Stdout, resp); ok {
			return err
		}
		fmt.Printf("%s (version %s", resp.Status, resp.Version)
		if resp.Debug {
			fmt.Print(", debug mode")
		}
		fmt.Println(")")
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the daemon's metrics in Prometheus text format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := clientContext()
		defer cancel()

		text, err := newClient().Metrics(ctx)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after file, environment and flags are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsJSONOutput() {
			_, err := printStructured(os.Stdout, cfg)
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}
