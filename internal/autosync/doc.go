// Package autosync drives library reconciliation on a timer. A single
// process-wide run lock guards every sync invocation, scheduled or manual:
// a trigger while a run is in flight is rejected as already running, never
// queued. The interval is measured from the previous run's start, so a
// reconfigured interval reschedules relative to the last run.
package autosync
