package replay_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aminovpavel/aprs-mqtt/internal/observability"
	"github.com/aminovpavel/aprs-mqtt/internal/pipeline"
	"github.com/aminovpavel/aprs-mqtt/internal/replay"
	"github.com/aminovpavel/aprs-mqtt/internal/testutil"
	"github.com/aminovpavel/aprs-mqtt/internal/topic"
)

var capture = strings.Join([]string{
	testutil.ServerBanner,
	testutil.PositionLine,
	"",
	testutil.WeatherLine,
	testutil.MalformedLine,
	testutil.StatusLine,
}, "\n") + "\n"

type recordingHandler struct {
	lines []string
	fail  map[string]bool
}

func (h *recordingHandler) Handle(line string) error {
	h.lines = append(h.lines, line)
	if h.fail[line] {
		return errors.New("publish failed")
	}
	return nil
}

func TestReplaySkipsCommentsAndBlanks(t *testing.T) {
	h := &recordingHandler{}
	res, err := replay.Replay(context.Background(), strings.NewReader(capture), h, replay.Options{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Lines != 4 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.lines[0] != testutil.PositionLine {
		t.Fatalf("expected first packet line, got %q", h.lines[0])
	}
}

func TestReplayLimitAndFailures(t *testing.T) {
	h := &recordingHandler{fail: map[string]bool{testutil.WeatherLine: true}}
	res, err := replay.Replay(context.Background(), strings.NewReader(capture), h, replay.Options{Limit: 2})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Lines != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestReplayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := replay.Replay(ctx, strings.NewReader(capture), &recordingHandler{}, replay.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReplayFileGzipThroughHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(capture)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write capture: %v", err)
	}

	var logs bytes.Buffer
	builder, err := topic.NewBuilder("gw", "aprs")
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	handler, err := pipeline.NewHandler(pipeline.HandlerConfig{
		Builder:   builder,
		Publisher: replay.LogPublisher{Logger: observability.NewLogger("info", observability.WithWriter(&logs))},
		Process:   true,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	res, err := replay.ReplayFile(context.Background(), path, handler, replay.Options{})
	if err != nil {
		t.Fatalf("replay file: %v", err)
	}
	if res.Lines != 4 {
		t.Fatalf("expected 4 lines, got %+v", res)
	}
	// position: raw+position, weather: raw+weather, status: raw
	if n := strings.Count(logs.String(), "dry-run publish"); n != 5 {
		t.Fatalf("expected 5 dry-run publishes, got %d:\n%s", n, logs.String())
	}
	if !strings.Contains(logs.String(), "topic=raw/gw/aprs/weather") {
		t.Fatalf("expected weather topic in logs:\n%s", logs.String())
	}
}

func TestReplayFileValidation(t *testing.T) {
	if _, err := replay.ReplayFile(context.Background(), "", &recordingHandler{}, replay.Options{}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := replay.ReplayFile(context.Background(), "capture.txt", nil, replay.Options{}); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if _, err := replay.ReplayFile(context.Background(), filepath.Join(t.TempDir(), "missing"), &recordingHandler{}, replay.Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
