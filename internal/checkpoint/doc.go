// Package checkpoint persists per-source backup progress: the byte offset
// already consumed and the destination artifact the source maps to.
package checkpoint
