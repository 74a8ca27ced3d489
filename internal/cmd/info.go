package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csmcal/wf2wf/internal/convert"
	"github.com/csmcal/wf2wf/internal/formats"
	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
)

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	var fromFlag string

	c := &cobra.Command{
		Use:   "info <workflow>",
		Short: "Summarise a workflow",
		Long:  `Imports a workflow and prints its tasks, resources, and dependency structure.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runInfo(c, args[0], fromFlag)
		},
	}

	c.Flags().StringVar(&fromFlag, "from", "", "Source format (default: by extension)")
	return c
}

func runInfo(c *cobra.Command, path, fromFlag string) error {
	f, err := resolveFormat(path, fromFlag)
	if err != nil {
		return err
	}

	importer, err := convert.NewImporter(f, formats.ImporterOptions{})
	if err != nil {
		return err
	}
	w, err := importer.ParseSource(c.Context(), path)
	if err != nil {
		return err
	}

	output.Println(fmt.Sprintf("Workflow: %s (format: %s)", output.Noun(w.Name), f))
	if w.Version != "" {
		output.Println("Version:  " + w.Version)
	}
	output.Println(fmt.Sprintf("Tasks:    %d", len(w.Tasks)))
	output.Println(fmt.Sprintf("Edges:    %d", len(w.Edges)))
	output.Println("")

	table := output.NewTable("Task", "Command", "CPU", "Memory", "Container", "Depends on")
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		table.Row(
			id,
			truncate(anyCommand(t), 40),
			anyResource(t.CPU),
			anyResource(t.MemMB),
			anyString(t.Container),
			strings.Join(w.Parents(id), ", "),
		)
	}
	output.Println(table.Render())
	return nil
}

// anyCommand returns the command under any environment, preferring defaults.
func anyCommand(t *ir.Task) string {
	if cmd, ok := t.Command.Default(); ok {
		return cmd
	}
	for _, env := range ir.Environments {
		if cmd, ok := t.Command.GetFor(env); ok {
			return cmd
		}
	}
	if script, ok := t.Script.Default(); ok {
		return script
	}
	return ""
}

func anyResource(ev *ir.EnvValue[int64]) string {
	if v, ok := ev.Default(); ok {
		return fmt.Sprintf("%d", v)
	}
	for _, env := range ir.Environments {
		if v, ok := ev.GetFor(env); ok {
			return fmt.Sprintf("%d", v)
		}
	}
	return "-"
}

func anyString(ev *ir.EnvValue[string]) string {
	if v, ok := ev.Default(); ok {
		return v
	}
	for _, env := range ir.Environments {
		if v, ok := ev.GetFor(env); ok {
			return v
		}
	}
	return "-"
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
