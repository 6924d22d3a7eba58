package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/view"
)

func newTopicsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List topics with progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list := view.NewListView(c, notifier(cmd))
			if err := list.Refresh(cmd.Context()); err != nil {
				return err
			}
			printTopics(cmd.OutOrStdout(), list.Topics())
			fmt.Fprintf(cmd.OutOrStdout(), "\nОбщий прогресс: %d%%\n", list.Overall())
			return nil
		},
	}
}

func printTopics(w io.Writer, topics []progress.TopicProgress) {
	fmt.Fprintf(w, "%3s  %-36s  %-12s  %7s  %5s\n", "ID", "Тема", "Сложность", "Задачи", "%")
	fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, t := range topics {
		label := t.DifficultyLabel
		if label == "" {
			label = string(t.Difficulty)
		}
		fmt.Fprintf(w, "%3d  %-36s  %-12s  %7s  %4d%%\n",
			t.ID, truncate(t.Title, 36), label,
			fmt.Sprintf("%d/%d", t.Completed, t.Tasks), t.Progress)
	}
}

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <topic-id> <completed>",
		Short: "Set the number of completed tasks for a topic",
		Long:  "Set the number of completed tasks for a topic. Values outside 0..tasks are clamped.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicID, err := parseTopicID(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("completed must be a number, got %q", args[1])
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			list := view.NewListView(c, notifier(cmd))
			if err := list.Refresh(cmd.Context()); err != nil {
				return err
			}
			if err := list.SetCompleted(cmd.Context(), topicID, n); err != nil {
				return err
			}

			t, _ := list.Topic(topicID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d (%d%%)\n", t.Title, t.Completed, t.Tasks, t.Progress)
			return nil
		},
	}
}

func parseTopicID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("topic id must be a positive number, got %q", s)
	}
	return id, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
