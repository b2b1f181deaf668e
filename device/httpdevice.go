package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/watlab/autocontrol/status"
	"github.com/watlab/autocontrol/task"
)

// DefaultRequestTimeout bounds a single instrument HTTP round-trip.
const DefaultRequestTimeout = 10 * time.Second

// base is embedded by every concrete device kind. It owns the HTTP
// transport (communicate, grounded on the original device.py's method of
// the same name) and the per-device rate limiter that keeps a flaky or slow
// instrument from being hammered with retries, grounded on
// control_plane/scheduler/limiter.go's TokenBucketLimiter.
type base struct {
	name          string
	address       string
	deviceType    Kind
	simulated     bool
	passive       bool
	channelMode   task.ChannelMode
	numberOfChans int

	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitBreaker

	mu sync.Mutex
}

func newBase(name, address string, kind Kind, simulated bool) base {
	return base{
		name:          name,
		address:       address,
		deviceType:    kind,
		simulated:     simulated,
		numberOfChans: 1,
		client:        &http.Client{Timeout: DefaultRequestTimeout},
		limiter:       rate.NewLimiter(rate.Limit(5), 10),
		breaker:       newCircuitBreaker(),
	}
}

func (b *base) Name() string                    { return b.name }
func (b *base) NumberOfChannels() int            { return b.numberOfChans }
func (b *base) ChannelMode() task.ChannelMode    { return b.channelMode }
func (b *base) Passive() bool                    { return b.passive }
func (b *base) Simulated() bool                  { return b.simulated }

// command is the wire shape every instrument endpoint accepts, matching the
// original device.py's cmdstr literal ('{"command": ..., "value": ...}').
type command struct {
	Command string `json:"command"`
	Value   any    `json:"value"`
}

type commandResult struct {
	Result json.RawMessage `json:"result"`
}

// communicate posts a command to the device's HTTP address and returns its
// JSON-decoded 'result' payload. A nil address (never initialized) reports
// Invalid rather than attempting a request.
func (b *base) communicate(ctx context.Context, cmd string, value any) (status.Status, json.RawMessage, error) {
	if b.address == "" {
		return status.Invalid, nil, nil
	}
	if !b.breaker.allow() {
		return status.Error, nil, fmt.Errorf("device %s: circuit open, skipping request", b.name)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return status.Error, nil, err
	}

	st, result, err := b.doRequest(ctx, cmd, value)
	if st == status.Success {
		b.breaker.recordSuccess()
	} else {
		b.breaker.recordFailure()
	}
	return st, result, err
}

func (b *base) doRequest(ctx context.Context, cmd string, value any) (status.Status, json.RawMessage, error) {
	data, err := json.Marshal(command{Command: cmd, Value: value})
	if err != nil {
		return status.Error, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.address, bytes.NewReader(data))
	if err != nil {
		return status.Error, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return status.Error, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status.Error, nil, fmt.Errorf("device %s returned status %d", b.name, resp.StatusCode)
	}

	var cr commandResult
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return status.Error, nil, err
	}
	return status.Success, cr.Result, nil
}

func initChannelCount(st *task.SubTask) int {
	if st.NumberOfChans <= 0 {
		return 1
	}
	return st.NumberOfChans
}
