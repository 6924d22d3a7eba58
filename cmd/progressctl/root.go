package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/pai-progress/internal/client"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/logging"
	"github.com/p-n-ai/pai-progress/internal/view"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	endpoint string
	student  int64
	language string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	cfg, _ := config.Load()
	opts := &options{}

	root := &cobra.Command{
		Use:          "progressctl",
		Short:        "Track OGE study progress",
		Long:         "progressctl lists exam topics, shows theory and records completed work against a progress service.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", cfg.Client.Endpoint, "Progress service URL (overrides PROGRESS_CLIENT_ENDPOINT)")
	root.PersistentFlags().Int64Var(&opts.student, "student", cfg.StudentID, "Student id (overrides PROGRESS_STUDENT_ID)")
	root.PersistentFlags().StringVar(&opts.language, "lang", "ru", "Language for difficulty labels")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", cfg.Client.Timeout, "Per-request timeout")

	root.AddCommand(
		newTopicsCmd(opts),
		newSectionsCmd(opts),
		newSetCmd(opts),
		newStudyCmd(opts),
		newWatchCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func (o *options) client() (*client.Client, error) {
	if o.student <= 0 {
		return nil, fmt.Errorf("--student must be positive, got %d", o.student)
	}
	return client.New(o.endpoint, o.student,
		client.WithHTTPClient(&http.Client{Timeout: o.timeout}),
		client.WithLanguage(o.language),
	), nil
}

// notifier reports view notifications on the command's stderr.
func notifier(cmd *cobra.Command) view.Notifier {
	return view.SlogNotifier{
		Logger: logging.New(cmd.ErrOrStderr(), config.LogConfig{Level: "info", Format: "text"}),
	}
}
