package model

// SyncState reports whether a local change reached the durable store.
type SyncState string

const (
	SyncCommitted SyncState = "committed"
	SyncLocalOnly SyncState = "local_only"
)

// Sync accompanies every mutation of in-memory state. Local state always
// reflects the attempted change; State says whether the store has it too.
type Sync struct {
	State SyncState `json:"state"`
	Err   error     `json:"-"`
}

// Committed is the Sync for a change that reached the store.
func Committed() Sync { return Sync{State: SyncCommitted} }

// LocalOnly is the Sync for a change the store rejected or never saw.
func LocalOnly(err error) Sync { return Sync{State: SyncLocalOnly, Err: err} }

// Durable reports whether the change was committed.
func (s Sync) Durable() bool { return s.State == SyncCommitted }

// Merge folds another outcome into s; any local-only write makes the
// combined result local-only and keeps the first error.
func (s Sync) Merge(o Sync) Sync {
	if s.State == "" {
		return o
	}
	if s.State == SyncLocalOnly {
		return s
	}
	return o
}
