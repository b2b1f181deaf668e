package device

import "time"

// simulatedLatency stands in for the instrument dwell time the original
// simulated devices model with a blocking sleep. A short constant keeps the
// scheduler's single-threaded driver loop responsive in simulated mode
// without losing the "this operation takes real time" shape of the call.
const simulatedLatency = 20 * time.Millisecond

func dummyQCMDData() map[string]any {
	return map[string]any{
		"time":        []float64{0, 10, 20, 30},
		"frequency":   []float64{0, -1, -2, -3},
		"dissipation": []float64{100, 200, 300, 400},
		"temperature": []float64{300, 300, 300, 300},
	}
}
