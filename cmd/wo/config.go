package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ashewang/work-orchestrator/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Configuration is read from the user file (~/.config/wo/config.yaml),
then the nearest .wo.yaml above the working directory, then environment
variables (WO_DB_PATH, WO_REPO_PATH, WO_WORKTREE_DIR, SLACK_BOT_TOKEN).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file locations",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	token, _ := config.GetSlackToken(cfg)
	cfg.Slack.BotToken = config.MaskToken(token)

	if flagJSON {
		return printJSON(cfg)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Printf("user:    %s\n", config.GetUserConfigPath())
	project := config.GetProjectConfigPath()
	if project == "" {
		project = "(none found)"
	}
	fmt.Printf("project: %s\n", project)
	return nil
}
