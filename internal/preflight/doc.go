// Package preflight provides readiness checks for the binaries, directories,
// and locker endpoint lockersync depends on.
//
// The "lockersync check" command renders every result. The upload command
// calls RequireUploadTools before starting a batch so a missing ffmpeg fails
// fast instead of once per file.
package preflight
