package id

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// ErrNotInitialized is returned by NewChecked before Init has succeeded.
var ErrNotInitialized = errors.New("id generator not initialized")

// Init initializes the Snowflake node with the given node ID.
// The orchestrator and worker processes must use different node IDs.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered int64 ID for persisted rows.
func New() int64 {
	return node.Generate().Int64()
}

func NewChecked() (int64, error) {
	if node == nil {
		return 0, ErrNotInitialized
	}
	return New(), nil
}
