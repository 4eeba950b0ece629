package account

import (
	"github.com/alexbilevskiy/tgdesk/internal/dispatcher"
	"github.com/alexbilevskiy/tgdesk/internal/marshal"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

// uiCaller submits through the dispatcher and runs reply callbacks on the
// presentation goroutine.
type uiCaller struct {
	d    *dispatcher.Dispatcher
	loop *marshal.Loop
}

func (c *uiCaller) Call(fn tdlib.Function, cb func(tdlib.Payload)) error {
	var onReply dispatcher.Callback
	if cb != nil {
		onReply = func(resp tdlib.Response) {
			c.loop.Post(func() { cb(resp.Payload) })
		}
	}
	_, err := c.d.Submit(fn, onReply)

	return err
}
