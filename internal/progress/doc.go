// Package progress polls the backend's shared processing-progress resource
// while a job runs and renders it as a step line and a time line.
//
// A Monitor owns at most one poll loop. Start replaces any running loop;
// Stop cancels it, including an in-flight request, and never clears the last
// rendered text. Polls are serialized on one goroutine driven by a clockwork
// ticker, and a generation counter discards any result that lands after Stop.
//
// Failed polls are tolerated silently up to SilentRetries in a row. After
// that the display switches to FallbackStatus once and stays there until a
// poll succeeds. A snapshot with is_processing=false ends the loop: the
// monitor does not decide whether the job succeeded.
package progress
