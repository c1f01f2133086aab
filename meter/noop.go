package meter

import "github.com/ineyio/speechgate"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ speechgate.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnRoute(speechgate.RouteEvent)   {}
func (m *NoopMeter) OnResult(speechgate.ResultEvent) {}
func (m *NoopMeter) OnCharge(speechgate.ChargeEvent) {}
