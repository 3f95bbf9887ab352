// Package tasks runs playlist jobs: a [Scheduler] triggers a [Reconciler] pass, and each pass walks pending jobs through a
// [Pipeline] scrape.
//
// # Job lifecycle
//
// Every pending job is claimed (Processing), scraped, persisted, and finished:
//
//  1. Success: tracks replaced, result record upserted, status Completed.
//  2. Scrape failure: retry count incremented; the job returns to Pending until the retry budget is spent, then Failed.
//  3. Persistence failure after a good scrape: Failed without touching the retry count.
//
// A pass never overlaps another pass on the same [Reconciler]; a reentrant call returns a skipped [PassSummary]
// without touching the store.
//
// # Progress Reporting
//
// Passes and scrapes emit [ProgressUpdate] values on an optional channel. Sends never block: a full channel drops the update.
package tasks
