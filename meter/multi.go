package meter

import "github.com/ineyio/speechgate"

// MultiMeter fans every event out to several meters in order.
type MultiMeter []speechgate.Meter

var _ speechgate.Meter = MultiMeter(nil)

// Multi combines meters, skipping nil ones.
func Multi(meters ...speechgate.Meter) MultiMeter {
	out := make(MultiMeter, 0, len(meters))
	for _, m := range meters {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (mm MultiMeter) OnRoute(e speechgate.RouteEvent) {
	for _, m := range mm {
		m.OnRoute(e)
	}
}

func (mm MultiMeter) OnResult(e speechgate.ResultEvent) {
	for _, m := range mm {
		m.OnResult(e)
	}
}

func (mm MultiMeter) OnCharge(e speechgate.ChargeEvent) {
	for _, m := range mm {
		m.OnCharge(e)
	}
}
