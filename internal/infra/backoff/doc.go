// Package backoff computes capped exponential delays for retries and
// reconnects.
package backoff
