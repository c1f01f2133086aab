package policy

import (
	"github.com/ineyio/speechgate"
)

// QuotaFirstPolicy serves every request from the metered cloud engine until
// the ledger is strictly above its threshold, then from the local engine.
type QuotaFirstPolicy struct{}

var _ speechgate.Policy = (*QuotaFirstPolicy)(nil)

// Select returns BackendLocal iff the snapshot is exhausted.
func (p *QuotaFirstPolicy) Select(s speechgate.Snapshot) speechgate.Backend {
	return speechgate.SelectBackend(s)
}
