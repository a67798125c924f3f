package main

import (
	"github.com/sahilchouksey/module-enhancer/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the enhancement queue",
	Long:  `Starts the API server together with the single-worker enhancement queue. Pending jobs from a previous run are recovered from the queue snapshot.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.SetupAndRunServer()
	},
}
