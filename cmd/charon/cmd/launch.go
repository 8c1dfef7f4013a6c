package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psantana5/charon/internal/fetch"
	"github.com/psantana5/charon/internal/hostinfo"
	"github.com/psantana5/charon/internal/qmp"
	"github.com/psantana5/charon/internal/wrapper"
	"github.com/psantana5/charon/pkg/engine"
	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/models"
)

var (
	launchRefetch bool
	stopForce     bool
)

var commandCmd = &cobra.Command{
	Use:   "command <name> <version> <volume_root>",
	Short: "Print the command that launches a package",
	Args:  cobra.ExactArgs(3),
	RunE:  runCommand,
}

var launchCmd = &cobra.Command{
	Use:   "launch <name> <version> <volume_root>",
	Short: "Launch a package in the foreground",
	Long: `Compiles the package, fetches the VM image when needed, and runs the
container or VM until it exits or charon receives SIGTERM. This is what the
generated systemd unit runs.`,
	Args: cobra.ExactArgs(3),
	RunE: runLaunch,
}

var stopCmd = &cobra.Command{
	Use:   "stop <name> <version> <volume_root>",
	Short: "Stop a running package",
	Args:  cobra.ExactArgs(3),
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status <name> <version> <volume_root>",
	Short: "Query a running VM through its monitor",
	Args:  cobra.ExactArgs(3),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	launchCmd.Flags().BoolVar(&launchRefetch, "refetch", false, "download the VM image even if one exists")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "quit a VM immediately instead of an ACPI powerdown")
}

func runCommand(cmd *cobra.Command, args []string) error {
	pkg, err := openRegistry().Compile(args[0], args[1])
	if err != nil {
		return err
	}
	argv, err := engine.Generate(pkg, args[2])
	if err != nil {
		return err
	}

	if done, err := printStructured(os.Stdout, argv); done {
		return err
	}
	fmt.Println(strings.Join(argv, " "))
	return nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	name, version, volumeRoot := args[0], args[1], args[2]
	logger := logging.Default().WithField("package", name+"-"+version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pkg, err := openRegistry().Compile(name, version)
	if err != nil {
		return err
	}

	if host, err := hostinfo.Probe(""); err == nil {
		for _, w := range host.Check(pkg) {
			logger.Warn(w)
		}
	}

	// argv is built first so volume names are checked before anything on
	// disk is touched
	argv, err := engine.Generate(pkg, volumeRoot)
	if err != nil {
		return err
	}

	if pkg.IsVM() {
		if _, err := fetch.Image(ctx, pkg.Source.Location, volumeRoot, fetch.Options{Force: launchRefetch, Logger: logger}); err != nil {
			return err
		}
	} else if err := prepareVolumes(pkg, volumeRoot); err != nil {
		return err
	}

	result, err := wrapper.Run(ctx, pkg.Title.String(), argv, wrapper.Options{Logger: logger})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 && ctx.Err() == nil {
		return fmt.Errorf("%s exited with code %d", pkg.Title, result.ExitCode)
	}
	return nil
}

// prepareVolumes creates the host directories bound into a container
func prepareVolumes(pkg *models.CompiledPackage, volumeRoot string) error {
	for _, v := range pkg.Storage.Volumes {
		if v.Mountpoint == nil {
			continue
		}
		if err := models.ValidateVolumeName(v.Name); err != nil {
			return err
		}
		path := filepath.Join(volumeRoot, v.Name)
		if v.Recreate {
			if err := os.RemoveAll(path); err != nil {
				return errs.Wrap(errs.KindIOFailure, "launch", path, err)
			}
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return errs.Wrap(errs.KindIOFailure, "launch", path, err)
		}
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pkg, err := openRegistry().Compile(args[0], args[1])
	if err != nil {
		return err
	}

	if pkg.IsVM() {
		client, err := qmp.Dial(ctx, engine.MonitorPath(args[2]))
		if err != nil {
			return fmt.Errorf("%s is not running or not monitored: %w", pkg.Title, err)
		}
		defer client.Close()

		if stopForce {
			return client.Quit(ctx)
		}
		return client.Powerdown(ctx)
	}

	argv, err := engine.NewPodmanEngine().StopCommand(pkg)
	if err != nil {
		return err
	}
	result, err := wrapper.Run(ctx, pkg.Title.String(), argv, wrapper.Options{})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("podman stop exited with code %d", result.ExitCode)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pkg, err := openRegistry().Compile(args[0], args[1])
	if err != nil {
		return err
	}
	if !pkg.IsVM() {
		return errs.New(errs.KindBackendMismatch, "status", pkg.Title.String(), "status is only available for VMs")
	}

	client, err := qmp.Dial(ctx, engine.MonitorPath(args[2]))
	if err != nil {
		return fmt.Errorf("%s is not running or not monitored: %w", pkg.Title, err)
	}
	defer client.Close()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	if done, err := printStructured(os.Stdout, status); done {
		return err
	}
	fmt.Printf("%s: %s\n", pkg.Title, status.Status)
	return nil
}
