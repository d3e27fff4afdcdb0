package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/git-commit/this-building-rocks-assistant/internal/application"
	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
)

const scriptExt = ".jsonl"

// lineAnswer marks a script line that answers the next recognition
// request instead of being an engine event.
const lineAnswer = "answer"

// FileSource replays event scripts dropped into a directory. Each
// .jsonl file holds one engine event envelope per line; lines of type
// "answer" feed the recorder. Consumed files are renamed to *.processed.
type FileSource struct {
	dir          string
	pollInterval time.Duration
	logger       *slog.Logger

	mu        sync.Mutex
	events    []domain.Event
	answers   []string
	recording recording
}

func NewFileSource(dir string, pollInterval time.Duration, logger *slog.Logger) *FileSource {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &FileSource{
		dir:          dir,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating script dir: %w", err)
	}
	return nil
}

func (f *FileSource) Stop() error {
	return nil
}

func (f *FileSource) NextEvent(ctx context.Context) (domain.Event, error) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		if ev, ok := f.pop(); ok {
			return ev, nil
		}
		if err := f.loadNextScript(); err != nil {
			return nil, err
		}
		if ev, ok := f.pop(); ok {
			return ev, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WithRecordingSession answers from the script. A missing answer is
// recognized as silence.
func (f *FileSource) WithRecordingSession(_ context.Context, fn func(application.RecognitionSession) error) error {
	return f.recording.run(fn, func(context.Context) (application.Recognition, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.answers) == 0 {
			return application.Recognition{}, nil
		}
		text := f.answers[0]
		f.answers = f.answers[1:]
		return application.Recognition{Text: text}, nil
	})
}

func (f *FileSource) pop() (domain.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}

// loadNextScript queues the oldest unprocessed script, by file name.
func (f *FileSource) loadNextScript() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("reading dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == scriptExt {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	path := filepath.Join(f.dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script %s: %w", path, err)
	}
	if err := os.Rename(path, path+".processed"); err != nil {
		return fmt.Errorf("marking script %s processed: %w", path, err)
	}

	events, answers := f.parseScript(path, data)

	f.mu.Lock()
	f.events = append(f.events, events...)
	f.answers = append(f.answers, answers...)
	f.mu.Unlock()

	f.logger.Info("loaded event script", "file", names[0], "events", len(events), "answers", len(answers))
	return nil
}

func (f *FileSource) parseScript(path string, data []byte) ([]domain.Event, []string) {
	var (
		events  []domain.Event
		answers []string
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var probe struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			f.logger.Warn("skipping malformed script line", "file", path, "line", n, "error", err)
			continue
		}
		if probe.Type == lineAnswer {
			answers = append(answers, strings.TrimSpace(probe.Text))
			continue
		}

		ev, err := domain.ParseEvent(line)
		if err != nil {
			f.logger.Warn("skipping script line", "file", path, "line", n, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, answers
}
