package main

import (
	"fmt"

	"github.com/sahilchouksey/module-enhancer/config"
	"github.com/sahilchouksey/module-enhancer/database"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create tables and insert the demo catalog and app settings",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	store, err := database.StartGORM(env, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return err
	}

	if err := database.RunSeeds(store.GetDB().(*gorm.DB), log); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Seeding completed successfully")
	return nil
}
