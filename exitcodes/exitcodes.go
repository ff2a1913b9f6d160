// Package exitcodes defines the standard exit codes used by ibs-acceptor.
package exitcodes

// Exit code constants used by ibs-acceptor
// These constants define the exit codes that the application uses to indicate
// how a run ended:
//
// * Success (0): Used when the run completed, whatever the score
// * TestFailure (1): Used when --fail-under is set and the score is below it
// * RuntimeErr (2): Used for configuration errors, a missing token or other failures
const (
	Success     = 0 // Run completed
	TestFailure = 1 // Score below threshold
	RuntimeErr  = 2 // Runtime errors
)
