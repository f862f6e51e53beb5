package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appsync "github.com/nhle/mailsync/internal/sync"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			sched := appsync.NewScheduler(a.svc, a.cfg.Sync.Interval(), a.logger)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			watcher := appsync.NewRulesWatcher(a.svc, a.cfg.Paths.Rules, a.logger)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					a.logger.Warn("rules watcher stopped", "error", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s. Press Ctrl+C to stop.\n", a.cfg.Sync.Interval())
			<-ctx.Done()
			return nil
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			res := a.svc.Sync(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fetched %d, new %d, failed %d, %d records stored.\n",
				res.Fetched, len(res.NewIDs), res.Failed, len(res.Records))
			if res.Err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Sync incomplete, showing last stored records: %v\n", res.Err)
			}

			if wait && a.runner != nil {
				a.runner.Wait()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for a triggered enrichment run to exit")
	return cmd
}
