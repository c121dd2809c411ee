// Package replay feeds a capture of APRS-IS lines through the same handler
// the live feed uses.
package replay

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LineHandler processes one APRS-IS line.
type LineHandler interface {
	Handle(line string) error
}

// Options configures how lines are selected from the capture.
type Options struct {
	// Limit stops after this many packet lines; 0 replays everything.
	Limit int
}

// Result summarises a replay run.
type Result struct {
	Lines  int
	Failed int
}

// ReplayFile reads path, one line per packet, and hands every non-comment
// line to handler. Files ending in .gz are decompressed.
func ReplayFile(ctx context.Context, path string, handler LineHandler, opts Options) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("replay: source path must be provided")
	}
	if handler == nil {
		return Result{}, errors.New("replay: handler must not be nil")
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("replay: open source: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Result{}, fmt.Errorf("replay: open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Replay(ctx, r, handler, opts)
}

// Replay is ReplayFile over an already-open reader.
func Replay(ctx context.Context, r io.Reader, handler LineHandler, opts Options) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res.Lines++
		if err := handler.Handle(line); err != nil {
			res.Failed++
		}
		if opts.Limit > 0 && res.Lines >= opts.Limit {
			return res, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("replay: read source: %w", err)
	}
	return res, nil
}

// LogPublisher satisfies pipeline.Publisher by logging instead of publishing.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs topic and payload.
func (p LogPublisher) Publish(topic string, payload []byte) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("dry-run publish", slog.String("topic", topic), slog.String("payload", string(payload)))
	return nil
}
