// Package supervisor shows a browser based screensaver while the screen is locked.
//
// On a [screensaver.Locked] event the [Supervisor] frees the configured port, starts a static
// file server, waits for it and opens a kiosk browser window with a throwaway profile. On
// [screensaver.Unlocked], and whenever the supervisor stops, both processes are killed and the
// profile is removed.
//
// Cleanup never fails a transition. Errors of kill, remove and port freeing are logged as
// warnings and discarded; a process or directory that is already gone is not an error at all.
package supervisor
