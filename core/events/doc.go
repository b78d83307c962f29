// Package events defines what the solve session controller publishes on its
// event bus.
//
// Available event types:
//   - StateChanged: lifecycle transition (idle, solving, stopped)
//   - SnapshotApplied: a new timetable snapshot replaced the held one
//   - PollDropped: a poll response arrived after its job stopped
//   - Failure: a background operation failed
//   - AnalysisCompleted: a ranked analysis was produced
package events
