package client

import "awakenfetch/pkg/types/chains"

// Status is the orchestrator's finite state: Idle → Loading → Streaming →
// Success | Error, with Error → Loading on retry and anything → Idle on
// Reset. An explicit enum keeps the no-retry-after-exhaustion invariant
// checkable.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusStreaming
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusStreaming:
		return "streaming"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of one fetch lifecycle. Warnings collect the transient
// retry notices; LastError holds the terminal failure message verbatim.
type State struct {
	Status       Status
	Transactions []chains.Transaction
	Total        int
	Warnings     []string
	RetryCount   int
	CanRetry     bool
	LastError    string
}

// State returns a copy of the current snapshot.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.state
	snapshot.Warnings = append([]string(nil), c.state.Warnings...)
	snapshot.Transactions = append([]chains.Transaction(nil), c.state.Transactions...)
	return snapshot
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = s
}

func (c *Client) addWarning(w string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Warnings = append(c.state.Warnings, w)
	c.state.RetryCount++
}

func (c *Client) succeed(txs []chains.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = StatusSuccess
	c.state.Transactions = txs
	c.state.Total = len(txs)
	c.state.LastError = ""
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = StatusError
	c.state.LastError = err.Error()
	c.state.CanRetry = false
}
