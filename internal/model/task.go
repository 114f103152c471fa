package model

import "time"

// TaskDescriptor is one unit of requested work for one capability.
// Every task of one dispatch shares the same BatchID.
type TaskDescriptor struct {
	BatchID    string     `json:"batch_id"`
	FileName   string     `json:"file_name"`
	Capability Capability `json:"capability"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Batch is one dispatch of one file to the active capabilities.
type Batch struct {
	ID           string       `json:"id"`
	FileName     string       `json:"file_name"`
	Capabilities []Capability `json:"capabilities"`
	DispatchedAt time.Time    `json:"dispatched_at"`
}

func (b Batch) Expected() int {
	return len(b.Capabilities)
}

func (b Batch) Includes(c Capability) bool {
	for _, bc := range b.Capabilities {
		if bc == c {
			return true
		}
	}
	return false
}

// Missing lists the dispatched capabilities that have no entry in results.
func (b Batch) Missing(results []CapabilityResult) []Capability {
	got := make(map[Capability]struct{}, len(results))
	for _, r := range results {
		got[r.Capability] = struct{}{}
	}
	var missing []Capability
	for _, c := range b.Capabilities {
		if _, ok := got[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
