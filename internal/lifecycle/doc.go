// Package lifecycle tells the backend when this client may be gone.
//
// Events come from a Source: a ManualSource in tests, or a SignalSource that
// maps terminal signals (suspend, resume, interrupt, terminate) onto the
// Suspend, Visible, BeforeUnload and Unload events. A Signal reacts to them:
// Hidden arms a timer and notifies only if the session is still hidden when it
// fires, Visible disarms it, and the unload events notify immediately. Suspend
// notifies and waits for the attempt to finish, because a stopped process
// cannot run the hidden timer. The notification is an advisory POST that is
// never retried.
package lifecycle
