package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sahilchouksey/module-enhancer/services/diagram"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Repair mermaid diagrams in a markdown file",
	Long:  `Reads markdown from the given file (or stdin when the file is "-" or omitted) and prints it with every mermaid block normalized.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNormalize,
}

func runNormalize(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read markdown: %w", err)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), diagram.Normalize(string(raw)))
	return err
}
