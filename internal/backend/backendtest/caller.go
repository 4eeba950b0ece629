package backendtest

import (
	"fmt"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// Call is one request captured by Caller.
type Call struct {
	Function tdlib.Function
	callback func(tdlib.Payload)
	answered bool
}

// Caller stands in for the dispatcher plus marshaler pair. Tests answer calls
// explicitly, which runs the callback on the test goroutine.
type Caller struct {
	Calls []*Call
	Err   error
}

func (c *Caller) Call(fn tdlib.Function, cb func(tdlib.Payload)) error {
	if c.Err != nil {
		return c.Err
	}
	c.Calls = append(c.Calls, &Call{Function: fn, callback: cb})

	return nil
}

// Of returns captured calls of the given constructor type.
func (c *Caller) Of(typ string) []*Call {
	var res []*Call
	for _, call := range c.Calls {
		if call.Function.Type() == typ {
			res = append(res, call)
		}
	}

	return res
}

// Count returns how many calls of the given type were made.
func (c *Caller) Count(typ string) int {
	return len(c.Of(typ))
}

// LastOf returns the most recent call of the given type, or nil.
func (c *Caller) LastOf(typ string) *Call {
	calls := c.Of(typ)
	if len(calls) == 0 {
		return nil
	}

	return calls[len(calls)-1]
}

// Answer delivers p to the call's callback. Answering twice panics, as a
// real dispatcher never does it.
func (call *Call) Answer(p tdlib.Payload) {
	if call.answered {
		panic(fmt.Sprintf("%s answered twice", call.Function.Type()))
	}
	call.answered = true
	if call.callback != nil {
		call.callback(p)
	}
}
