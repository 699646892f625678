package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/internal/errors"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create storefront.json",
	}

	cmd.AddCommand(
		configShowCmd(a),
		configInitCmd(a),
	)
	return cmd
}

func configShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration: storefront.json overlaid with .env
and STOREFRONT_* variables, with defaults filled in. Secrets are omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if path := a.cfg.Path(); path != "" {
				fmt.Fprintf(out, "# %s\n", path)
			} else {
				fmt.Fprintln(out, "# no storefront.json, defaults and environment only")
			}
			return writeJSON(out, a.cfg)
		},
	}
}

func configInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a storefront.json with default values",
		Example: `  storefront config init
  storefront --config-dir ./deploy config init --force`,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.configDir
			if dir == "" {
				dir = "."
			}
			path := filepath.Join(dir, config.ConfigFileName)

			if config.Exists(dir) && !force {
				return errors.New("S501").
					WithDetail(path + " already exists.").
					WithSuggestion("Pass --force to overwrite it.")
			}

			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
