package main

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"comicshelf/internal/app"
)

type commandContext struct {
	configFlag *string

	once   sync.Once
	app    *app.App
	appErr error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureApp opens the config, logger and database once per invocation.
func (c *commandContext) ensureApp() (*app.App, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.app, c.appErr = app.Open(path)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}

func newRootCommand(ctx *commandContext, configFlag *string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "comicshelf",
		Short:         "Manage a personal comic collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipApp(cmd) {
				return nil
			}
			_, err := ctx.ensureApp()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	var configFlag string
	cmdCtx := newCommandContext(&configFlag)
	defer cmdCtx.close()

	root := newRootCommand(cmdCtx, &configFlag)
	root.SetArgs(args)
	root.SetOut(stdout)
	return root.ExecuteContext(ctx)
}

func shouldSkipApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipAppLoad"] == "true" {
			return true
		}
	}
	return false
}
