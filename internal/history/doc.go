// Package history records sweep cycle outcomes in SQLite so operators can
// inspect what recent cycles did without scraping logs.
package history
