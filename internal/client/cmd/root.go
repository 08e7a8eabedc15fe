// Package cmd implements the gamevault command line client.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:4000"

func NewRootCmd(version, buildDate string) *cobra.Command {
	var serverURL string
	root := &cobra.Command{
		Use:           "gamevault",
		Short:         "gamevault CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envServerURL(), "Server base URL")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gamevault %s (%s)\n", version, buildDate)
		},
	})
	root.AddCommand(newAuthCmd(&serverURL))
	root.AddCommand(newGamesCmd(&serverURL))
	return root
}

func envServerURL() string {
	if v, ok := os.LookupEnv("GAMEVAULT_SERVER_URL"); ok && v != "" {
		return v
	}
	return defaultServerURL
}
