package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/client"
	"github.com/p-n-ai/pai-progress/internal/view"
)

func newSectionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sections <topic-id>",
		Short: "Show the theory sections of a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicID, err := parseTopicID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			sections, err := c.Sections(cmd.Context(), topicID)
			if client.IsNotFound(err) {
				return fmt.Errorf("topic %d not found", topicID)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i, s := range sections {
				fmt.Fprintf(w, "%d. %s\n\n%s\n", i+1, s.Title, s.Content)
				for _, ex := range s.Examples {
					fmt.Fprintf(w, "  • %s\n", ex)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func newStudyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "study <topic-id>",
		Short: "Work through a topic's sections interactively",
		Long: "Work through a topic's sections interactively. Enter a section number to " +
			"mark it studied or not studied; q quits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicID, err := parseTopicID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}

			detail := view.NewDetailView(c, notifier(cmd), topicID)
			if err := detail.Open(cmd.Context()); err != nil {
				return err
			}
			return studyLoop(cmd, detail)
		},
	}
}

func studyLoop(cmd *cobra.Command, detail *view.DetailView) error {
	out := cmd.OutOrStdout()
	printDetail(out, detail)

	sc := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "q", "quit", "exit":
			return nil
		}

		sections := detail.Sections()
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(sections) {
			fmt.Fprintf(out, "enter a section number 1-%d or q\n", len(sections))
			continue
		}
		// Write failures were already reported through the notifier.
		if err := detail.Toggle(cmd.Context(), sections[n-1].ID); err != nil {
			continue
		}
		printDetail(out, detail)
	}
}

func printDetail(w io.Writer, detail *view.DetailView) {
	topic, _ := detail.Topic()
	sections := detail.Sections()

	fmt.Fprintf(w, "%s\n%s\n\n", topic.Title, topic.Description)
	for i, s := range sections {
		mark := " "
		if detail.IsComplete(s.ID) {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %d. %s\n", mark, i+1, s.Title)
	}
	fmt.Fprintf(w, "\nИзучено: %d / %d (%d%%)\n", detail.CompletedCount(), len(sections), detail.Progress())
}
