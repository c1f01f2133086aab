package speechgate

// Policy chooses the backend for a request from a single ledger snapshot.
type Policy interface {
	Select(s Snapshot) Backend
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(s Snapshot) Backend

func (f PolicyFunc) Select(s Snapshot) Backend { return f(s) }

// SelectBackend routes to the local engine iff the quota is exhausted.
// Nothing but the snapshot affects the decision.
func SelectBackend(s Snapshot) Backend {
	if s.Exhausted() {
		return BackendLocal
	}
	return BackendCloud
}

// defaultQuotaPolicy is an inline quota-first policy to avoid import cycles.
type defaultQuotaPolicy struct{}

func (defaultQuotaPolicy) Select(s Snapshot) Backend { return SelectBackend(s) }
