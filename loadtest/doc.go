// Package loadtest drives synthetic sessions through the production
// worker pool and scale manager to validate capacity assumptions before
// a real run. Arrivals are paced with a token-bucket limiter, executor
// latency and failure mix are configurable, and the resulting report
// includes throughput, latency percentiles and a capacity
// recommendation.
package loadtest
