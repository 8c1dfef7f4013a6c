package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/charon/pkg/api"
	"github.com/psantana5/charon/pkg/config"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/registry"
)

var (
	cfgFile      string
	outputFormat string

	v   = viper.New()
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "charon",
	Short: "CLI to the Charon packaging system",
	Long: `charon packages containers and virtual machines with templated configuration,
compiles them against operator answers and globals, and installs systemd units
that launch them.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = api.Version

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is /etc/charon/config.yaml or $HOME/.charon/config.yaml)")
	flags.StringP("registry", "r", "", "root path to package registry")
	flags.String("socket", "", "daemon control socket")
	flags.String("log-level", "", "log level: error, warn, info, debug, trace")
	flags.Bool("debug", false, "skip unit and response writes on the host")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")

	v.BindPFlag("registry", flags.Lookup("registry"))
	v.BindPFlag("socket", flags.Lookup("socket"))
	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("debug", flags.Lookup("debug"))
}

// initConfig reads in config file and ENV variables, then installs the
// default logger
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadWith(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logging.SetDefault(cfg.Logger())
	return nil
}

func openRegistry() *registry.Registry {
	return cfg.OpenRegistry()
}

func newClient() *api.Client {
	return api.NewClient(cfg.Socket)
}

// clientContext bounds a single request to the daemon
func clientContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// printStructured writes v as JSON or YAML. It returns false for table
// output so the caller renders its own table.
func printStructured(w io.Writer, v interface{}) (bool, error) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		node, err := toYAML(v)
		if err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(node)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", outputFormat)
	}
}

// printDocument writes v as YAML unless JSON was asked for
func printDocument(v interface{}) error {
	if outputFormat == "table" {
		outputFormat = "yaml"
		defer func() { outputFormat = "table" }()
	}
	_, err := printStructured(os.Stdout, v)
	return err
}

// toYAML converts v through its JSON encoding, so custom marshalers apply
// and field order is kept
func toYAML(v interface{}) (*yaml.Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	plain(&node)
	return &node, nil
}

// plain drops the flow and quoting styles inherited from JSON
func plain(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plain(c)
	}
}
