// FILE: lixenwraith/classconfig/cmd/classconfig/watch.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/classconfig"
)

var watchFlags struct {
	interval time.Duration
	debounce time.Duration
}

func init() {
	watchCmd.Flags().DurationVar(&watchFlags.interval, "interval", classconfig.DefaultPollInterval, "file poll interval")
	watchCmd.Flags().DurationVar(&watchFlags.debounce, "debounce", classconfig.DefaultDebounce, "change coalescence period")
}

var watchCmd = &cobra.Command{
	Use:   "watch [class...]",
	Short: "Reload declaration files on change and print affected classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, logger, err := newBuilder()
		if err != nil {
			return err
		}

		opts := classconfig.DefaultWatchOptions()
		opts.PollInterval = watchFlags.interval
		opts.Debounce = watchFlags.debounce

		r, err := b.WithWatch(opts).Build()
		if err != nil {
			if r == nil || !errors.Is(err, classconfig.ErrConfigNotFound) {
				return err
			}
			logger.WithError(err).Warn("some declaration files were not found")
		}
		defer r.Close()

		if !r.IsWatching() {
			return fmt.Errorf("no declaration files to watch")
		}

		filter := make(map[string]bool, len(args))
		for _, class := range args {
			filter[class] = true
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		changes := r.Watch()
		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case change, ok := <-changes:
				if !ok {
					return nil
				}
				if len(filter) > 0 && !filter[change] && r.Declarations().Has(change) {
					continue
				}
				fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), colorize(r.Declarations(), change))
			}
		}
	},
}
