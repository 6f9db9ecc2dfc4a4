package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/config"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/sanitize"
	"logvault/internal/source"
)

type fixture struct {
	dir         string
	backupDir   string
	checkpoints *checkpoint.Store
	sink        *backup.DirSink
	pipeline    *pipeline.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	sourceDir := filepath.Join(base, "logs")
	backupDir := filepath.Join(base, "backup")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatalf("mkdir source dir: %v", err)
	}

	checkpoints := checkpoint.Open(filepath.Join(base, "checkpoints.json"), logging.NewNop())
	sink := backup.NewDir(backupDir)
	engine := sanitize.New(config.Masking{
		FullMask:       []string{"password"},
		RedactionToken: "[REDACTED]",
		MaskChar:       "*",
	})
	return &fixture{
		dir:         sourceDir,
		backupDir:   backupDir,
		checkpoints: checkpoints,
		sink:        sink,
		pipeline:    pipeline.New(checkpoints, source.NewDir(sourceDir), sink, engine, logging.NewNop()),
	}
}

func (f *fixture) writeSource(t *testing.T, name, content string) source.Descriptor {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	return source.Descriptor{Name: name, Length: info.Size()}
}

func (f *fixture) appendSource(t *testing.T, name, content string) source.Descriptor {
	t.Helper()
	path := filepath.Join(f.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open source for append: %v", err)
	}
	if _, err := file.WriteString(content); err != nil {
		t.Fatalf("append source: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close source: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	return source.Descriptor{Name: name, Length: info.Size()}
}

func (f *fixture) backupContent(t *testing.T, destination string) string {
	t.Helper()
	data, err := os.ReadFile(f.sink.ArtifactPath(destination))
	if err != nil {
		t.Fatalf("read backup artifact: %v", err)
	}
	return string(data)
}

func TestProcessWritesSanitizedLines(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "app.log", `{"msg":"hello","password":"x"}`+"\n"+`{"msg":"world"}`+"\n")

	stats, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.LinesWritten != 2 {
		t.Fatalf("lines written = %d, want 2", stats.LinesWritten)
	}
	if stats.EndOffset != desc.Length {
		t.Fatalf("end offset = %d, want %d", stats.EndOffset, desc.Length)
	}

	got := f.backupContent(t, stats.Destination)
	want := `{"msg":"hello","password":"[REDACTED]"}` + "\n" + `{"msg":"world"}` + "\n"
	if got != want {
		t.Fatalf("backup content:\n got %q\nwant %q", got, want)
	}
}

func TestProcessIdempotentWithoutNewData(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "app.log", `{"msg":"one"}`+"\n")

	first, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	second, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if !second.NoNewData {
		t.Fatal("second pass should detect no new data")
	}
	if second.EndOffset != first.EndOffset {
		t.Fatalf("checkpoint moved from %d to %d with no new bytes", first.EndOffset, second.EndOffset)
	}
	if got := f.backupContent(t, first.Destination); strings.Count(got, "\n") != 1 {
		t.Fatalf("second pass duplicated output: %q", got)
	}
}

func TestProcessResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "app.log", `{"n":1}`+"\n")

	first, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	desc = f.appendSource(t, "app.log", `{"n":2}`+"\n")
	second, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.LinesWritten != 1 {
		t.Fatalf("resumed pass wrote %d lines, want 1", second.LinesWritten)
	}
	if second.EndOffset <= first.EndOffset {
		t.Fatalf("offset must advance, got %d after %d", second.EndOffset, first.EndOffset)
	}

	got := f.backupContent(t, first.Destination)
	want := `{"n":1}` + "\n" + `{"n":2}` + "\n"
	if got != want {
		t.Fatalf("backup content:\n got %q\nwant %q", got, want)
	}
}

func TestProcessTruncationResetsAndReprocesses(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "app.log", `{"n":1}`+"\n"+`{"n":2}`+"\n")

	if _, err := f.pipeline.Process(context.Background(), desc); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// Rotation: the file is replaced with shorter, new content.
	desc = f.writeSource(t, "app.log", `{"n":3}`+"\n")
	stats, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("pass after truncation failed: %v", err)
	}
	if !stats.TruncationReset {
		t.Fatal("expected truncation reset")
	}
	if stats.EndOffset != desc.Length {
		t.Fatalf("end offset = %d, want %d", stats.EndOffset, desc.Length)
	}
	if got := f.backupContent(t, stats.Destination); !strings.HasSuffix(got, `{"n":3}`+"\n") {
		t.Fatalf("rotated content missing from backup: %q", got)
	}
}

func TestProcessEmptySourceCreatesArtifact(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "empty.log", "")

	stats, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.EndOffset != 0 {
		t.Fatalf("end offset = %d, want 0", stats.EndOffset)
	}
	if got := f.backupContent(t, stats.Destination); got != "" {
		t.Fatalf("empty source produced content %q", got)
	}
}

func TestProcessSkipsBlankAndMalformedLines(t *testing.T) {
	f := newFixture(t)
	content := `{"n":1}` + "\n" + "\n" + "   \n" + "not json at all\n" + `{"n":2}` + "\n"
	desc := f.writeSource(t, "app.log", content)

	stats, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.LinesWritten != 2 {
		t.Fatalf("lines written = %d, want 2", stats.LinesWritten)
	}
	if stats.LinesMalformed != 1 {
		t.Fatalf("malformed count = %d, want 1", stats.LinesMalformed)
	}
	if stats.EndOffset != desc.Length {
		t.Fatalf("end offset = %d, want %d (whole file consumed)", stats.EndOffset, desc.Length)
	}

	got := f.backupContent(t, stats.Destination)
	want := `{"n":1}` + "\n" + `{"n":2}` + "\n"
	if got != want {
		t.Fatalf("backup content:\n got %q\nwant %q", got, want)
	}
}

// failingSink fails every append after the first n.
type failingSink struct {
	inner   backup.Sink
	allowed int
	calls   int
}

func (s *failingSink) Append(destination string, content []byte) error {
	s.calls++
	if s.calls > s.allowed {
		return errors.New("backup target offline")
	}
	return s.inner.Append(destination, content)
}

func (s *failingSink) Ensure(destination string) error {
	return s.inner.Ensure(destination)
}

func TestProcessWriteFailureDoesNotAdvancePastAppendedLines(t *testing.T) {
	f := newFixture(t)
	line1 := `{"n":1}` + "\n"
	desc := f.writeSource(t, "app.log", line1+`{"n":2}`+"\n")

	sink := &failingSink{inner: f.sink, allowed: 1}
	p := pipeline.New(f.checkpoints, source.NewDir(f.dir), sink, sanitize.New(config.Masking{MaskChar: "*", RedactionToken: "x"}), logging.NewNop())

	stats, err := p.Process(context.Background(), desc)
	if err == nil {
		t.Fatal("expected write failure to propagate")
	}
	if stats.EndOffset != int64(len(line1)) {
		t.Fatalf("checkpoint = %d, want %d (only the appended line)", stats.EndOffset, len(line1))
	}

	// Next pass with a healthy sink picks up the unwritten line.
	stats2, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("retry pass failed: %v", err)
	}
	if stats2.LinesWritten != 1 {
		t.Fatalf("retry wrote %d lines, want 1", stats2.LinesWritten)
	}
}

func TestProcessCancelledBeforeReadSavesPosition(t *testing.T) {
	f := newFixture(t)
	desc := f.writeSource(t, "app.log", `{"n":1}`+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := f.pipeline.Process(ctx, desc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.EndOffset != 0 {
		t.Fatalf("cancelled pass advanced checkpoint to %d", stats.EndOffset)
	}

	// A later pass with a live context processes everything.
	stats2, err := f.pipeline.Process(context.Background(), desc)
	if err != nil {
		t.Fatalf("follow-up pass failed: %v", err)
	}
	if stats2.LinesWritten != 1 {
		t.Fatalf("follow-up wrote %d lines, want 1", stats2.LinesWritten)
	}
}
