package policy

import "github.com/ineyio/speechgate"

// FixedPolicy pins every request to one backend regardless of quota.
// Useful for deployments without cloud credentials, or to drain the quota
// deliberately during maintenance.
type FixedPolicy struct {
	Backend speechgate.Backend
}

var _ speechgate.Policy = (*FixedPolicy)(nil)

// Select returns the pinned backend.
func (p *FixedPolicy) Select(speechgate.Snapshot) speechgate.Backend {
	return p.Backend
}
