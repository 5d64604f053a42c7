package repository

import "errors"

var (
	// ErrVideoNotFound is returned when a video cannot be found, or is
	// not owned by the caller (the two cases are indistinguishable on
	// purpose).
	ErrVideoNotFound = errors.New("video not found")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateVideo is returned when attempting to create a video
	// that already exists.
	ErrDuplicateVideo = errors.New("video already exists")

	// ErrDuplicateUser is returned when a user with the same external
	// auth ID or email already exists.
	ErrDuplicateUser = errors.New("user already exists")

	// ErrDuplicateJob is returned when a pending or running job already
	// exists for the (video, stage) pair.
	ErrDuplicateJob = errors.New("active job already exists for stage")

	// ErrStaleState is returned when a compare-and-set state update did
	// not match the expected current state.
	ErrStaleState = errors.New("video state changed concurrently")

	// ErrObjectNotFound is returned when an object does not exist in
	// the object store.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when a configured bucket is absent.
	ErrBucketNotFound = errors.New("bucket not found")
)
