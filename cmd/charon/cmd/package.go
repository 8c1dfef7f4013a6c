package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/charon/internal/hostinfo"
	"github.com/psantana5/charon/pkg/models"
)

var checkVolumeRoot string

var packageCmd = &cobra.Command{
	Use:     "package",
	Aliases: []string{"pkg"},
	Short:   "Manage packages in the registry",
}

var packageNewCmd = &cobra.Command{
	Use:   "new <name> <version>",
	Short: "Create a new package and its empty globals",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackageNew,
}

var packageRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a package completely from the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackageRemove,
}

var packageValidateCmd = &cobra.Command{
	Use:   "validate <name> <version>",
	Short: "Check a package and its dependencies",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackageValidate,
}

var packageShowCmd = &cobra.Command{
	Use:   "show <name> <version>",
	Short: "Print a source package",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackageShow,
}

var packageCompileCmd = &cobra.Command{
	Use:   "compile <name> <version>",
	Short: "Compile a package against its globals and responses",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackageCompile,
}

var packageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all packages",
	Args:  cobra.NoArgs,
	RunE:  runPackageList,
}

var packageSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search package names",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackageSearch,
}

var packageCheckCmd = &cobra.Command{
	Use:   "check <name> <version>",
	Short: "Check whether this host can run a package",
	Args:  cobra.ExactArgs(2),
	RunE:  runPackageCheck,
}

func init() {
	rootCmd.AddCommand(packageCmd)
	packageCmd.AddCommand(packageNewCmd)
	packageCmd.AddCommand(packageRemoveCmd)
	packageCmd.AddCommand(packageValidateCmd)
	packageCmd.AddCommand(packageShowCmd)
	packageCmd.AddCommand(packageCompileCmd)
	packageCmd.AddCommand(packageListCmd)
	packageCmd.AddCommand(packageSearchCmd)
	packageCmd.AddCommand(packageCheckCmd)

	packageCheckCmd.Flags().StringVar(&checkVolumeRoot, "volume-root", "", "also report free space under this directory")
}

func runPackageNew(cmd *cobra.Command, args []string) error {
	p, err := openRegistry().Create(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", p.Title)
	return nil
}

func runPackageRemove(cmd *cobra.Command, args []string) error {
	if err := openRegistry().Purge(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}

func runPackageValidate(cmd *cobra.Command, args []string) error {
	if err := openRegistry().Validate(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", models.NewTitle(args[0], args[1]))
	return nil
}

func runPackageShow(cmd *cobra.Command, args []string) error {
	p, err := openRegistry().Load(args[0], args[1])
	if err != nil {
		return err
	}
	return printDocument(p)
}

func runPackageCompile(cmd *cobra.Command, args []string) error {
	p, err := openRegistry().Compile(args[0], args[1])
	if err != nil {
		return err
	}
	return printDocument(p)
}

func runPackageList(cmd *cobra.Command, args []string) error {
	r := openRegistry()
	titles, err := r.List()
	if err != nil {
		return err
	}

	if done, err := printStructured(os.Stdout, titles); done {
		return err
	}

	if len(titles) == 0 {
		fmt.Println("No packages found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Version", "Source", "Description")
	for _, t := range titles {
		p, err := r.Load(t.Name, t.Version)
		if err != nil {
			table.Append(t.Name, t.Version, "error", err.Error())
			continue
		}
		table.Append(t.Name, t.Version, fmt.Sprintf("%s:%s", p.Source.Kind, p.Source.Location.Raw), p.Description)
	}
	table.Render()
	return nil
}

func runPackageSearch(cmd *cobra.Command, args []string) error {
	matches, err := openRegistry().Search(args[0])
	if err != nil {
		return err
	}

	if done, err := printStructured(os.Stdout, matches); done {
		return err
	}

	if len(matches) == 0 {
		fmt.Printf("No packages match %q\n", args[0])
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Versions", "Score")
	for _, m := range matches {
		table.Append(m.Name, strings.Join(m.Versions, ", "), fmt.Sprintf("%d", m.Score))
	}
	table.Render()
	return nil
}

type checkReport struct {
	Package  models.PackageTitle `json:"package"`
	Host     *hostinfo.Host      `json:"host"`
	Warnings []string            `json:"warnings"`
}

func runPackageCheck(cmd *cobra.Command, args []string) error {
	p, err := openRegistry().Compile(args[0], args[1])
	if err != nil {
		return err
	}

	host, err := hostinfo.Probe(checkVolumeRoot)
	if err != nil {
		return err
	}

	report := checkReport{Package: p.Title, Host: host, Warnings: host.Check(p)}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	if done, err := printStructured(os.Stdout, report); done {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Resource", "Requested", "Host")
	table.Append("CPUs", fmt.Sprintf("%d", p.Resources.CPUs), fmt.Sprintf("%d", host.CPUs))
	table.Append("Memory", fmt.Sprintf("%d MiB", p.Resources.Memory),
		fmt.Sprintf("%d MiB (%d MiB available)", host.MemoryTotal>>20, host.MemoryFree>>20))
	if checkVolumeRoot != "" {
		table.Append("Disk", "", fmt.Sprintf("%d MiB free", host.DiskFree>>20))
	}
	table.Render()

	for _, w := range report.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
	if len(report.Warnings) == 0 {
		fmt.Printf("%s fits on this host\n", p.Title)
	}
	return nil
}
