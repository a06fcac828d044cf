package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashewang/work-orchestrator/internal/web"
)

var (
	serveHost      string
	servePort      int
	serveNoMonitor bool
	serveDebug     bool

	monitorOnce     bool
	monitorInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and run the reconciliation monitor",
	Long: `Serve the read-only dashboard and JSON API, with Prometheus metrics at
/metrics, and run the reconciliation monitor in the same process until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Reconcile finished agent runs",
	Long: `Poll running agent runs and finish those whose process has exited:
record the outcome, move the task to review on success, free the slot and
post a notice to the project's Slack channel.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoMonitor, "no-monitor", false, "Serve the dashboard only")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode")

	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false, "Run one pass and exit")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Poll interval (default from config)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		host, port := a.cfg.Web.Host, a.cfg.Web.Port
		if serveHost != "" {
			host = serveHost
		}
		if servePort != 0 {
			port = servePort
		}
		reg, metrics := newMetrics()
		srv := web.NewServer(a.db, web.Config{
			Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
			Repo:      a.repoFor(projectID()),
			Worktrees: a.worktrees,
			Gatherer:  reg,
			Debug:     serveDebug,
		})

		ctx, stop := signalContext()
		defer stop()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Run(ctx) })
		if !serveNoMonitor {
			mon := a.newMonitor(metrics)
			mon.Start()
			g.Go(func() error {
				<-ctx.Done()
				return mon.Stop()
			})
		}
		return g.Wait()
	})
}

func runMonitor(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if monitorInterval > 0 {
			a.cfg.Monitor.PollInterval = monitorInterval
		}
		_, metrics := newMetrics()
		mon := a.newMonitor(metrics)

		if monitorOnce {
			n, err := mon.RunOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Reconciled %d run(s).\n", n)
			return nil
		}

		ctx, stop := signalContext()
		defer stop()
		mon.Start()
		<-ctx.Done()
		log.Printf("[monitor] shutting down")
		return mon.Stop()
	})
}
