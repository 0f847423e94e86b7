package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronguard/internal/crontab"
)

func nextCmd() *cobra.Command {
	var (
		count int
		from  string
		utc   bool
	)
	cmd := &cobra.Command{
		Use:   "next <expr>",
		Short: "Print the upcoming occurrences of a crontab expression",
		Example: `  cronguard next "*/15 9-17 * * 1-5" -n 3
  cronguard next @monthly --from 2024-02-29T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := crontab.Compile(args[0])
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("-n must be at least 1, got %d", count)
			}

			t := time.Now()
			if from != "" {
				t, err = time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if utc {
				t = t.UTC()
			}

			out := cmd.OutOrStdout()
			for range count {
				t = sched.Next(t)
				if t.IsZero() {
					fmt.Fprintln(out, "no further occurrences")
					return nil
				}
				fmt.Fprintln(out, t.Format("2006-01-02 15:04 Mon MST"))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of occurrences to print")
	cmd.Flags().StringVar(&from, "from", "", "Reference time in RFC 3339 (default now)")
	cmd.Flags().BoolVar(&utc, "utc", false, "Evaluate in UTC instead of the reference time's zone")
	return cmd
}
