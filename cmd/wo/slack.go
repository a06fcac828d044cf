package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/notify"
)

var slackChannel string

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Post task updates to Slack",
	Long: `Post messages with the bot token from SLACK_BOT_TOKEN or slack.bot_token.
Messages go to --channel, or to the project's slack channel.`,
}

var slackSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Post a plain message",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSlackSend,
}

var slackTaskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Post a task's status",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlackTask,
}

var slackReviewCmd = &cobra.Command{
	Use:   "review <task-id>",
	Short: "Ask for a review of a task's branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlackReview,
}

var slackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Post the project's progress",
	Args:  cobra.NoArgs,
	RunE:  runSlackStatus,
}

func init() {
	slackCmd.PersistentFlags().StringVarP(&slackChannel, "channel", "c", "", "Channel (default: project slack channel)")
	slackCmd.AddCommand(slackSendCmd, slackTaskCmd, slackReviewCmd, slackStatusCmd)
}

func runSlackSend(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		return postSlack(a, projectID(), strings.Join(args, " "))
	})
}

func runSlackTask(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := getTask(a, args[0])
		if err != nil {
			return err
		}
		return postSlack(a, t.ProjectID, notify.TaskText(t, t.ProjectID), notify.TaskBlocks(t, t.ProjectID)...)
	})
}

func runSlackReview(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := getTask(a, args[0])
		if err != nil {
			return err
		}
		return postSlack(a, t.ProjectID, notify.ReviewRequestText(t), notify.ReviewRequestBlocks(t)...)
	})
}

func runSlackStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		summary, err := a.db.ProjectSummary(pid)
		if err != nil {
			return err
		}
		return postSlack(a, pid, notify.StatusText(pid, summary), notify.StatusBlocks(pid, summary)...)
	})
}

// postSlack sends to --channel or the project's channel.
func postSlack(a *app, projectID, text string, blocks ...slack.Block) error {
	sink, err := a.slackSink()
	if err != nil {
		return err
	}
	channel := slackChannel
	if channel == "" {
		p, err := a.db.GetProject(projectID)
		if err != nil {
			return err
		}
		if p != nil {
			channel = p.SlackChannel
		}
	}
	if channel == "" {
		return errors.New("no channel: pass --channel or set the project's slack channel")
	}
	receipt, err := sink.Send(context.Background(), channel, text, blocks...)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(receipt)
	}
	printStatus("✓", fmt.Sprintf("Posted to %s (%s)", receipt.Channel, receipt.Timestamp), color.FgGreen)
	return nil
}
