// Package transcript records session output to compressed log files.
// The recorder is wired in as one more event sink; the session core is
// unaware of it.
package transcript
