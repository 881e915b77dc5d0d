// Package workflow coordinates the processing pipeline. A pool of workers
// pulls ready videos from the durable queue, claims a per-video lease, runs
// the stage handler registered for the video's status, and advances the
// status on success. Retryable failures are requeued with capped exponential
// backoff; fatal failures and exhausted attempts mark the video failed with
// the stage it can be manually requeued to.
package workflow
