// Command logvault is the CLI for the logvault backup daemon: it controls the
// daemon over its Unix socket and provides offline utilities for sweeping,
// inspecting checkpoints and history, and testing the masking policy.
package main
