package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/contentcache/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd returns the command tree and a cleanup that releases whatever the
// executed command opened.
func newRootCmd() (*cobra.Command, func()) {
	var (
		flagConfig string
		a          *app
	)

	root := &cobra.Command{
		Use:          "contentcache",
		Short:        "Cache-aside reads and invalidation for the content collection",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["skipApp"] == "true" {
				return nil
			}
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default "+config.DefaultConfigPath()+")")

	getApp := func() *app { return a }
	root.AddCommand(
		newListCmd(getApp),
		newGetCmd(getApp),
		newTodayCmd(getApp),
		newInvalidateCmd(getApp),
		newSeedCmd(getApp),
		newVersionCmd(),
	)
	cleanup := func() {
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			fmt.Fprintln(root.ErrOrStderr(), "close:", err)
		}
		a = nil
	}
	return root, cleanup
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipApp": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "contentcache %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
