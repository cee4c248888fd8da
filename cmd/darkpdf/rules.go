package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/darkpdf/pkg/config"
	"github.com/entrhq/darkpdf/pkg/logging"
	"github.com/entrhq/darkpdf/pkg/rulesync"
	"github.com/entrhq/darkpdf/pkg/settings"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the declarative redirect rules for the stored settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fs, err := config.NewFileStore(cfg.SettingsPath)
		if err != nil {
			return fmt.Errorf("failed to open settings: %w", err)
		}
		current, err := settings.NewStore(fs, logging.Discard()).Get(cmd.Context())
		if err != nil {
			return err
		}

		rules := rulesync.Build(current, cfg.ViewerURL)
		if rules == nil {
			rules = []rulesync.Rule{}
		}
		data, err := json.MarshalIndent(rules, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
