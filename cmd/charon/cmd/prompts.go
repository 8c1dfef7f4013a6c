package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/charon/internal/ask"
	"github.com/psantana5/charon/pkg/prompt"
)

var answerViaDaemon bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect and answer package prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list <name> <version>",
	Short: "List the prompts a package declares",
	Args:  cobra.ExactArgs(2),
	RunE:  runPromptsList,
}

var promptsAnswerCmd = &cobra.Command{
	Use:   "answer <name> <version>",
	Short: "Answer a package's prompts interactively",
	Args:  cobra.ExactArgs(2),
	RunE:  runPromptsAnswer,
}

var promptsResponsesCmd = &cobra.Command{
	Use:   "responses <name>",
	Short: "Show the stored responses for a package",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsResponses,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsAnswerCmd)
	promptsCmd.AddCommand(promptsResponsesCmd)

	promptsAnswerCmd.Flags().BoolVar(&answerViaDaemon, "daemon", false, "fetch prompts and store answers through the daemon")
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	p, err := openRegistry().Load(args[0], args[1])
	if err != nil {
		return err
	}

	prompts := p.Prompts
	if prompts == nil {
		prompts = prompt.Collection{}
	}
	if done, err := printStructured(os.Stdout, prompts); done {
		return err
	}

	if len(prompts) == 0 {
		fmt.Printf("%s declares no prompts\n", p.Title)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Type", "Question")
	for _, pr := range prompts {
		table.Append(pr.Template, string(pr.InputType.Kind), pr.Question)
	}
	table.Render()
	return nil
}

func runPromptsAnswer(cmd *cobra.Command, args []string) error {
	name, version := args[0], args[1]
	ctx := context.Background()
	r := openRegistry()

	var prompts prompt.Collection
	if answerViaDaemon {
		var err error
		if prompts, err = newClient().GetPrompts(ctx, name, version); err != nil {
			return err
		}
	} else {
		p, err := r.Load(name, version)
		if err != nil {
			return err
		}
		prompts = p.Prompts
	}

	existing, err := r.Responses().GetOrEmpty(name)
	if err != nil {
		return err
	}

	responses, err := ask.Answer(ask.Survey{}, prompts, existing)
	if err != nil {
		return err
	}

	if answerViaDaemon {
		return newClient().SetResponses(ctx, name, responses)
	}
	if cfg.DebugMode() {
		fmt.Println("Debug mode: responses not saved")
		return nil
	}
	if err := r.Responses().Set(name, responses); err != nil {
		return err
	}
	fmt.Printf("Saved %d responses for %s\n", len(responses), name)
	return nil
}

func runPromptsResponses(cmd *cobra.Command, args []string) error {
	responses, err := openRegistry().Responses().GetOrEmpty(args[0])
	if err != nil {
		return err
	}

	if done, err := printStructured(os.Stdout, responses); done {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Type", "Value")
	for _, resp := range responses {
		table.Append(resp.Template, string(resp.Input.Kind), resp.String())
	}
	table.Render()
	return nil
}
