// Package sanitize implements the line-level transformation engine: structured
// log records go in, masked and normalized records (or nothing) come out.
//
// The engine is a pure function over single lines. It never returns an error
// to its caller: any record it cannot process safely is dropped, so one bad
// line can never stop the backup of the rest of a file.
package sanitize
