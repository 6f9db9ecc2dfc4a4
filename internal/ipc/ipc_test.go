package ipc_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"logvault/internal/backup"
	"logvault/internal/checkpoint"
	"logvault/internal/daemon"
	"logvault/internal/ipc"
	"logvault/internal/logging"
	"logvault/internal/pipeline"
	"logvault/internal/sanitize"
	"logvault/internal/source"
	"logvault/internal/sweep"
	"logvault/internal/testsupport"
)

func startServer(t *testing.T) (*ipc.Client, *daemon.Daemon) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteSourceFile(t, cfg, "app.log", `{"msg":"hello"}`+"\n")

	logger := logging.NewNop()
	checkpoints := checkpoint.Open(cfg.CheckpointPath(), logger)
	provider := source.NewDir(cfg.Paths.SourceDir)
	sink := backup.NewDir(cfg.Paths.BackupDir)
	engine := sanitize.New(cfg.Masking)
	p := pipeline.New(checkpoints, provider, sink, engine, logger)
	manager := sweep.NewManager(cfg, p, provider, checkpoints, nil, logger)

	d, err := daemon.New(cfg, checkpoints, nil, manager, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.StateDir, "ipc-test.sock")
	server, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		cancel()
		server.Close()
		d.Close()
	})
	return client, d
}

func TestStartStatusSweepStop(t *testing.T) {
	client, _ := startServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon must not report running before Start")
	}

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("start rejected: %s", startResp.Message)
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after start: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon must report running after Start")
	}
	if status.PID <= 0 {
		t.Fatalf("missing pid in status: %+v", status)
	}

	sweepResp, err := client.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !sweepResp.Triggered {
		t.Fatalf("sweep not triggered: %s", sweepResp.Message)
	}

	// The initial cycle processes the seeded file; wait for it to land.
	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, listErr := client.CheckpointList()
		if listErr != nil {
			t.Fatalf("CheckpointList: %v", listErr)
		}
		if len(entries.Entries) == 1 && entries.Entries[0].Offset > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("checkpoint never advanced: %+v", entries.Entries)
		}
		time.Sleep(20 * time.Millisecond)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("stop not acknowledged")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("daemon must not report running after Stop")
	}
}

func TestSweepWithoutRunningDaemon(t *testing.T) {
	client, _ := startServer(t)

	resp, err := client.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if resp.Triggered {
		t.Fatal("sweep must not trigger while the loop is stopped")
	}
}

func TestHistoryUnavailableWithoutStore(t *testing.T) {
	client, _ := startServer(t)

	if _, err := client.History(5); err == nil {
		t.Fatal("expected error when history store is absent")
	}
}
