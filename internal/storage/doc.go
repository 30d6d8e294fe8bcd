// Package storage writes fetched items into a gocloud.dev/blob bucket.
//
// The output location is either a local directory path, which is created
// recursively and opened with fileblob, or a bucket URL understood by
// blob.OpenBucket (file://, mem://, s3://, gs://).
//
// Writes stream from an io.Reader. A write that fails part way is aborted so
// no partial object is left behind. Existing objects are overwritten.
package storage
