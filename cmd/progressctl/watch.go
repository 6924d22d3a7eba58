package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/realtime"
	"github.com/p-n-ai/pai-progress/internal/view"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print progress whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			list := view.NewListView(c, notifier(cmd))
			if err := list.Refresh(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Общий прогресс: %d%%\n", list.Overall())

			return c.Watch(ctx, func(h realtime.Hint) {
				if err := list.Refresh(ctx); err != nil {
					return
				}
				t, _ := list.Topic(h.TopicID)
				fmt.Fprintf(out, "%s: %d/%d (%d%%), общий прогресс: %d%%\n",
					t.Title, t.Completed, t.Tasks, t.Progress, list.Overall())
			})
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download progress as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("progress-%d.xlsx", c.StudentID())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			n, err := c.Export(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default progress-<student>.xlsx)")
	return cmd
}
