package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

var (
	ErrClosed    = errors.New("backend handle closed")
	ErrQueueFull = errors.New("backend send queue full")
)

// Frame is one raw object received from the backend. RequestID is the
// echoed @extra tag, zero for pushes.
type Frame struct {
	RequestID uint64
	Data      json.RawMessage
}

// Handle is the opaque channel to the messaging backend.
//
// Send enqueues a request and never blocks on the network. Receive waits up
// to timeout and returns a nil frame when nothing arrived.
type Handle interface {
	Send(fn tdlib.Function, requestID uint64) error
	Receive(timeout time.Duration) (*Frame, error)
	Close() error
}

// ParseFrame extracts the correlation tag from a raw backend object.
func ParseFrame(data []byte) (*Frame, error) {
	var meta struct {
		Extra json.RawMessage `json:"@extra"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	f := &Frame{Data: json.RawMessage(data)}
	if len(meta.Extra) == 0 || string(meta.Extra) == "null" {
		return f, nil
	}
	id, err := strconv.ParseUint(string(meta.Extra), 10, 64)
	if err != nil {
		// foreign tag, not ours
		return f, nil
	}
	f.RequestID = id

	return f, nil
}
