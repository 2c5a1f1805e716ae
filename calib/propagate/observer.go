package propagate

import "github.com/cwbudde/algo-wavecal/calib/wavesol"

// RowResult describes an accepted row.
type RowResult struct {
	Row         int
	Solution    wavesol.Solution
	Lines       int
	Peaks       int
	Correlation float64
}

// RMS returns the fit RMS of the row solution.
func (r RowResult) RMS() float64 { return r.Solution.RMS() }

// Observer receives propagation events. Calls are made from the goroutine
// running Propagator.Run.
type Observer interface {
	OnRowAccepted(res RowResult)
	OnRowRejected(row int, err error)
	OnProgress(done, total int)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) OnRowAccepted(RowResult) {}

func (NopObserver) OnRowRejected(int, error) {}

func (NopObserver) OnProgress(int, int) {}

type multiObserver []Observer

// Observers returns an Observer that forwards every event to each non-nil
// observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))

	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}

	return out
}

func (m multiObserver) OnRowAccepted(res RowResult) {
	for _, o := range m {
		o.OnRowAccepted(res)
	}
}

func (m multiObserver) OnRowRejected(row int, err error) {
	for _, o := range m {
		o.OnRowRejected(row, err)
	}
}

func (m multiObserver) OnProgress(done, total int) {
	for _, o := range m {
		o.OnProgress(done, total)
	}
}
