// Command lockersync uploads local audio files to a remote media locker.
//
// The upload command scans the named files and directories, negotiates
// metadata with the locker in one batch, answers match-sample challenges, and
// uploads whatever the server could not match. Every input path ends in
// exactly one of three buckets (uploaded, matched, not uploaded), rendered as
// a table or, with --json, as a machine-readable report.
//
// Supporting commands show the uploader device identity, the upload history
// kept in the state directory, dependency and connectivity checks, and
// configuration helpers.
package main
