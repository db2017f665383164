// Package s3 implements an object-storage backend for the high-capacity
// tier, with expiry carried as object metadata.
package s3
