// Package console provides terminal output for forge pipelines.
//
// Pipelines never print directly. They emit progress through a Sink that
// is injected at construction time, so the CLI can render styled output
// while tests capture and assert on the same events.
package console

// Sink receives human-facing progress events from pipelines and commands.
//
// Implementations must be safe for concurrent use: parallel agent dispatch
// reports progress from multiple goroutines.
type Sink interface {
	// Headline prints a bold section opener, e.g. the start of a build.
	Headline(format string, args ...any)

	// Rule prints a divider line, e.g. between review rounds.
	Rule(format string, args ...any)

	// Info prints a standard progress line.
	Info(format string, args ...any)

	// Detail prints a dim secondary line (key/value context, file lists).
	Detail(format string, args ...any)

	// Success prints a line indicating a completed step.
	Success(format string, args ...any)

	// Warn prints a non-fatal problem.
	Warn(format string, args ...any)

	// Error prints a failure.
	Error(format string, args ...any)

	// Panel prints a titled box, used for final summaries and plans.
	Panel(title, body string)

	// Blank prints an empty line.
	Blank()
}
