package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/charon/pkg/models"
	"github.com/psantana5/charon/pkg/systemd"
)

var unitLocal bool

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Manage the systemd units that launch packages",
}

var unitWriteCmd = &cobra.Command{
	Use:   "write <name> <version> <volume_root>",
	Short: "Install the unit for a package",
	Args:  cobra.ExactArgs(3),
	RunE:  runUnitWrite,
}

var unitRemoveCmd = &cobra.Command{
	Use:   "remove <name> <version>",
	Short: "Remove the unit for a package",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnitRemove,
}

var unitShowCmd = &cobra.Command{
	Use:   "show <name> <version> <volume_root>",
	Short: "Print the unit a package would get",
	Args:  cobra.ExactArgs(3),
	RunE:  runUnitShow,
}

func init() {
	rootCmd.AddCommand(unitCmd)
	unitCmd.AddCommand(unitWriteCmd)
	unitCmd.AddCommand(unitRemoveCmd)
	unitCmd.AddCommand(unitShowCmd)

	unitCmd.PersistentFlags().BoolVar(&unitLocal, "local", false, "write units in-process instead of through the daemon")
}

func localWriter() *systemd.Writer {
	return systemd.NewWriter(cfg.SystemdRoot, systemd.NewSystemctlReloader(), cfg.DebugMode())
}

func runUnitWrite(cmd *cobra.Command, args []string) error {
	ctx, cancel := clientContext()
	defer cancel()
	name, version, volumeRoot := args[0], args[1], args[2]

	if !unitLocal {
		resp, err := newClient().WriteUnit(ctx, name, version, volumeRoot)
		if err != nil {
			return err
		}
		if !resp.Written {
			fmt.Printf("Daemon is in debug mode: %s not written\n", resp.Path)
			return nil
		}
		fmt.Printf("Wrote %s\n", resp.Path)
		return nil
	}

	r := openRegistry()
	pkg, err := r.Compile(name, version)
	if err != nil {
		return err
	}
	unit, err := localWriter().Write(ctx, pkg, r.Path(), volumeRoot)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", unit.Filename())
	return nil
}

func runUnitRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := clientContext()
	defer cancel()

	if !unitLocal {
		resp, err := newClient().RemoveUnit(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", resp.Path)
		return nil
	}

	title := models.NewTitle(args[0], args[1])
	if err := title.Validate(); err != nil {
		return err
	}
	w := localWriter()
	if err := w.Remove(ctx, title); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", (&systemd.Unit{Title: title, ServiceRoot: w.ServiceRoot}).Filename())
	return nil
}

func runUnitShow(cmd *cobra.Command, args []string) error {
	r := openRegistry()
	pkg, err := r.Compile(args[0], args[1])
	if err != nil {
		return err
	}

	text, err := systemd.NewUnit(pkg, cfg.SystemdRoot).Render(r.Path(), args[2])
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}
