package main

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/safe-event/internal/config"
	"github.com/rbaliyan/safe-event/internal/generator"
	"github.com/spf13/cobra"
)

func newGenerateCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go event definitions from the configured schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, c, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Render files without writing them")
	return cmd
}

func runGenerate(cmd *cobra.Command, c *cli, dryRun bool) error {
	cfg, err := config.Load(c.fs, c.configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return fmt.Errorf("%w (run 'safe-event init' to create one)", err)
		}
		return err
	}

	g := generator.New(c.fs, cfg, generator.WithLogger(c.logger), generator.WithDryRun(dryRun))
	results, err := g.Generate(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		if dryRun {
			notice(out, "would generate %s (%d events)", r.Output, len(r.Events))
			continue
		}
		success(out, "generated %s (%d events)", r.Output, len(r.Events))
	}
	success(out, "event generation completed")
	return nil
}
