package exitcodes

// Exit codes for the treesweep CLI.
// These codes form the operational contract with scripts and operators.
// Per-file deletion or prune failures never change the exit code; they are
// reported in the run summary instead.
const (
	Success         = 0 // Successful run, including "no duplicates" and "user declined"
	SetupError      = 2 // Bad usage, missing/invalid roots, or invalid configuration
	SafetyViolation = 3 // Refused to operate on an unsafe target root
	RuntimeError    = 4 // Unrecoverable error during execution
)
