package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sahilchouksey/module-enhancer/app"
	"github.com/sahilchouksey/module-enhancer/config"
	"github.com/sahilchouksey/module-enhancer/services/pipeline"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/spf13/cobra"
)

var enhanceOpts struct {
	title        string
	file         string
	subject      string
	profession   string
	instructions string
	moduleNumber int
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Run the content pipeline once and print the result as JSON",
	Long:  `Runs the enhancement pipeline against a local markdown file using the configured providers. Nothing is written to the database.`,
	Args:  cobra.NoArgs,
	RunE:  runEnhance,
}

func init() {
	f := enhanceCmd.Flags()
	f.StringVar(&enhanceOpts.title, "title", "", "module title")
	f.StringVar(&enhanceOpts.file, "file", "", "markdown file with the raw module content")
	f.StringVar(&enhanceOpts.subject, "subject", "", "subject name used for field detection")
	f.StringVar(&enhanceOpts.profession, "profession", "", "profession name used for field detection")
	f.StringVar(&enhanceOpts.instructions, "instructions", "", "extra authoring instructions")
	f.IntVar(&enhanceOpts.moduleNumber, "module-number", 0, "position of the module in its subject")
	_ = enhanceCmd.MarkFlagRequired("title")
	_ = enhanceCmd.MarkFlagRequired("file")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(enhanceOpts.file)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return errors.New("content file is empty")
	}

	if err := config.LoadENV(); err != nil {
		return err
	}
	env, err := config.Get()
	if err != nil {
		return err
	}

	log, err := logger.New(env.GO_ENV, env.LOG_FILE)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx := cmd.Context()
	p, cleanup, err := app.BuildPipeline(ctx, env, nil, log)
	if err != nil {
		return err
	}
	defer cleanup()

	out := p.Generate(ctx, pipeline.Input{
		Title:               enhanceOpts.title,
		RawContent:          string(raw),
		InstructionOverride: enhanceOpts.instructions,
		SubjectName:         enhanceOpts.subject,
		ProfessionName:      enhanceOpts.profession,
		ModuleNumber:        enhanceOpts.moduleNumber,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
