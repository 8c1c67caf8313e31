// Package s3 archives rollout reports to S3-compatible object storage.
//
// Reports are stored as JSON under a date-partitioned key, so a bucket can
// collect the history of every rollout run against a fleet.
package s3
