// Package runner turns trigger events into completed jobs.
//
// A job moves through resolve, dispatch, and finalize phases. The resolver
// expands a schedule's target libraries into work items, a bounded worker
// pool pushes each item through the processor, and the terminal job status is
// derived purely from the item outcome counts. Two ceilings bound the work: a
// global running-jobs slot pool and a per-job item worker pool. Cancellation
// stops dispatch but lets in-flight items run to completion.
package runner
