package id

import "github.com/google/uuid"

// NewBatchID returns a random UUID. Batch IDs cross process boundaries on the
// queues, so they must not depend on a node ID being configured.
func NewBatchID() string {
	return uuid.NewString()
}

func IsBatchID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
