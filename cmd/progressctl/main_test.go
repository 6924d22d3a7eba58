package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pai-progress/internal/api"
	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/realtime"
)

type backend struct {
	url string
	svc *progress.Service
	hub *realtime.Hub
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	hub := realtime.NewHub()
	broker := realtime.NewBroker(hub, nil)
	require.NoError(t, broker.Start(context.Background()))

	svc := progress.NewService(progress.ServiceConfig{Catalog: cat, Publisher: broker})
	srv := httptest.NewServer(api.New(api.Config{Service: svc, Hub: hub, DefaultStudent: 1}).Handler())
	t.Cleanup(srv.Close)
	return &backend{url: srv.URL, svc: svc, hub: hub}
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut syncBuffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestTopics(t *testing.T) {
	b := newBackend(t)
	_, err := b.svc.SetProgress(context.Background(), 1, 1, 12)
	require.NoError(t, err)

	out, _, err := run(t, context.Background(), "", "topics", "--endpoint", b.url, "--student", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Числа и вычисления")
	assert.Contains(t, out, "12/12")
	assert.Contains(t, out, "Базовый")
	// (100 + 0*5) / 6 rounds to 17.
	assert.Contains(t, out, "Общий прогресс: 17%")
}

func TestTopics_English(t *testing.T) {
	b := newBackend(t)
	out, _, err := run(t, context.Background(), "", "topics", "--endpoint", b.url, "--lang", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "Intermediate")
}

func TestSet(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{"clamps above total", []string{"3", "20"}, "18/18 (100%)", ""},
		{"within range", []string{"1", "6"}, "6/12 (50%)", ""},
		{"clamps negative", []string{"2", "--", "-4"}, "0/15 (0%)", ""},
		{"unknown topic", []string{"99", "1"}, "", "unknown topic"},
		{"bad topic", []string{"x", "1"}, "", "topic id must be a positive number"},
		{"bad count", []string{"1", "many"}, "", "completed must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			args := append([]string{"set", "--endpoint", b.url}, tt.args...)
			out, _, err := run(t, context.Background(), "", args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSections(t *testing.T) {
	b := newBackend(t)

	out, _, err := run(t, context.Background(), "", "sections", "1", "--endpoint", b.url)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Натуральные числа")

	_, _, err = run(t, context.Background(), "", "sections", "99", "--endpoint", b.url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic 99 not found")
}

func TestStudy(t *testing.T) {
	b := newBackend(t)

	// Toggle section 1 on, off and on again, then section 2, then an
	// invalid entry before quitting.
	out, _, err := run(t, context.Background(), "1\n1\n1\n2\n7\nq\n", "study", "1", "--endpoint", b.url)
	require.NoError(t, err)

	assert.Contains(t, out, "[x] 1. Натуральные числа")
	assert.Contains(t, out, "Изучено: 2 / 3 (67%)")
	assert.Contains(t, out, "enter a section number 1-3 or q")

	topics, err := b.svc.FetchAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, topics[0].Completed)
}

func TestStudy_EOFEndsSession(t *testing.T) {
	b := newBackend(t)
	out, _, err := run(t, context.Background(), "2\n", "study", "2", "--endpoint", b.url, "--student", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "Изучено: 1 / 2 (50%)")

	topics, err := b.svc.FetchAll(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, topics[1].Completed)
}

func TestStudy_UnknownTopic(t *testing.T) {
	b := newBackend(t)
	_, _, err := run(t, context.Background(), "", "study", "42", "--endpoint", b.url)
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	b := newBackend(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	out, _, err := run(t, context.Background(), "", "export", "-o", path, "--endpoint", b.url)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestInvalidStudent(t *testing.T) {
	b := newBackend(t)
	_, _, err := run(t, context.Background(), "", "topics", "--endpoint", b.url, "--student", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--student must be positive")
}

func TestUnreachableService(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, errOut, err := run(t, context.Background(), "", "topics", "--endpoint", url, "--timeout", "2s")
	require.Error(t, err)
	assert.Contains(t, errOut, "Не удалось загрузить прогресс")
}

func TestWatch(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out syncBuffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"watch", "--endpoint", b.url})
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return b.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := b.svc.SetProgress(ctx, 1, 4, 5)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "5/10 (50%)")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "Общий прогресс: 0%")
}
