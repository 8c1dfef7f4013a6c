package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
)

var globalsCmd = &cobra.Command{
	Use:   "globals",
	Short: "Manage per-package global variables",
}

var globalsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a package's global variables",
	Args:  cobra.ExactArgs(1),
	RunE:  runGlobalsGet,
}

var globalsSetCmd = &cobra.Command{
	Use:   "set <name> KEY=VALUE...",
	Short: "Set global variables for a package",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGlobalsSet,
}

func init() {
	rootCmd.AddCommand(globalsCmd)
	globalsCmd.AddCommand(globalsGetCmd)
	globalsCmd.AddCommand(globalsSetCmd)
}

func runGlobalsGet(cmd *cobra.Command, args []string) error {
	g, err := openRegistry().Globals().Get(args[0])
	if err != nil {
		return err
	}

	if done, err := printStructured(os.Stdout, g); done {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Value")
	for _, k := range g.Keys() {
		v, _ := g.Get(k)
		table.Append(k, v)
	}
	table.Render()
	return nil
}

func runGlobalsSet(cmd *cobra.Command, args []string) error {
	store := openRegistry().Globals()
	g, err := store.Get(args[0])
	switch {
	case errs.KindOf(err) == errs.KindNotFound:
		g = models.NewGlobal(args[0])
	case err != nil:
		return err
	}

	for _, pair := range args[1:] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		g.Set(key, value)
	}

	if err := store.Set(g); err != nil {
		return err
	}
	fmt.Printf("Updated %d variables for %s\n", len(args)-1, g.Name)
	return nil
}
