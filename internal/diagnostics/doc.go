// Package diagnostics produces anonymised device dumps for bug reports.
//
// A dump carries the descriptor and current state of every device with
// identifying data replaced: friendly names become "friendly-device-N",
// ids become random UUIDs with a consistent mapping for shared parents,
// timestamps are zeroed, and wifi SSIDs and MAC addresses are replaced.
// Function lists are kept verbatim since they are what a bug report needs.
package diagnostics
