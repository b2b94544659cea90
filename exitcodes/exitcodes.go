// Package exitcodes defines the standard exit codes used by op-snapcheck.
package exitcodes

// Exit code constants used by op-snapcheck
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every snapshot test passed or was updated
// * TestFailure (1): Used when one or more snapshot tests failed
// * RuntimeErr (2): Used for build failures, unresolved test names and other runtime errors
const (
	Success     = 0 // All tests passed or were updated
	TestFailure = 1 // At least one test failed
	RuntimeErr  = 2 // Build, discovery or configuration errors
)
