// Package pipeline drives the per-file backup pass: offset bookkeeping,
// truncation detection, line-by-line sanitization, and checkpoint advance.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/logging"
	"logvault/internal/sanitize"
	"logvault/internal/source"
)

// Stats reports what one pass over one file did.
type Stats struct {
	Source          string
	Destination     string
	StartOffset     int64
	EndOffset       int64
	LinesRead       int
	LinesWritten    int
	LinesDropped    int
	LinesMalformed  int
	TruncationReset bool
	// NoNewData is set when the pass ended without opening the file.
	NoNewData bool
}

// Pipeline processes a single file per call. It holds no per-file state; the
// checkpoint store carries everything that must survive between passes.
type Pipeline struct {
	checkpoints *checkpoint.Store
	provider    source.Provider
	sink        backup.Sink
	engine      *sanitize.Engine
	logger      *slog.Logger
}

// New wires a pipeline from its collaborators.
func New(checkpoints *checkpoint.Store, provider source.Provider, sink backup.Sink, engine *sanitize.Engine, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		checkpoints: checkpoints,
		provider:    provider,
		sink:        sink,
		engine:      engine,
		logger:      logging.WithComponent(logger, "pipeline"),
	}
}

// Process runs one pass over the described file. Errors returned here mean the
// remainder of this file is skipped for this cycle; the checkpoint reflects
// exactly the lines durably appended, so the next cycle resumes correctly.
func (p *Pipeline) Process(ctx context.Context, desc source.Descriptor) (Stats, error) {
	stats := Stats{Source: desc.Name}

	record, err := p.checkpoints.Get(desc.Name)
	if err != nil {
		return stats, fmt.Errorf("checkpoint for %q: %w", desc.Name, err)
	}
	stats.Destination = record.Destination
	stats.StartOffset = record.Offset

	if desc.Length == 0 {
		// The destination must exist even for empty sources.
		if err := p.sink.Ensure(record.Destination); err != nil {
			return stats, err
		}
		if err := p.checkpoints.Save(desc.Name, 0); err != nil {
			return stats, err
		}
		stats.EndOffset = 0
		return stats, nil
	}

	offset := record.Offset
	if desc.Length < offset {
		p.logger.Warn("source shrank below checkpoint; assuming truncation or rotation and re-reading from the start",
			logging.String(logging.FieldSource, desc.Name),
			logging.Int64(logging.FieldOffset, offset),
			logging.Int64("length", desc.Length),
		)
		offset = 0
		stats.TruncationReset = true
		stats.StartOffset = 0
	}

	if desc.Length == offset {
		stats.EndOffset = offset
		stats.NoNewData = true
		return stats, nil
	}

	reader, err := p.provider.OpenAt(desc.Name, offset)
	if err != nil {
		return stats, err
	}
	defer reader.Close()

	pos, runErr := p.consume(ctx, reader, record.Destination, offset, &stats)
	stats.EndOffset = pos
	if saveErr := p.checkpoints.Save(desc.Name, pos); saveErr != nil && runErr == nil {
		runErr = saveErr
	}
	return stats, runErr
}

// consume reads lines until end-of-stream, cancellation, or a destination
// write failure. The returned position covers every line fully handled:
// appended, dropped, or skipped. A line that failed to append is not covered.
func (p *Pipeline) consume(ctx context.Context, r io.Reader, destination string, offset int64, stats *Stats) (int64, error) {
	buffered := bufio.NewReader(r)
	pos := offset

	for {
		select {
		case <-ctx.Done():
			return pos, ctx.Err()
		default:
		}

		line, readErr := buffered.ReadString('\n')
		if len(line) > 0 {
			stats.LinesRead++
			text := strings.TrimRight(line, "\r\n")
			switch {
			case strings.TrimSpace(text) == "":
				stats.LinesDropped++
			default:
				sanitized, reason := p.engine.Sanitize(text)
				switch reason {
				case sanitize.DropNone:
					if err := p.sink.Append(destination, []byte(sanitized+"\n")); err != nil {
						return pos, err
					}
					stats.LinesWritten++
				case sanitize.DropMalformed:
					stats.LinesMalformed++
					stats.LinesDropped++
					p.logger.Debug("dropped malformed line",
						logging.String(logging.FieldSource, stats.Source),
						logging.Int64(logging.FieldOffset, pos),
					)
				default:
					stats.LinesDropped++
				}
			}
			pos += int64(len(line))
		}

		if readErr == io.EOF {
			return pos, nil
		}
		if readErr != nil {
			return pos, fmt.Errorf("read source %q: %w", stats.Source, readErr)
		}
	}
}
