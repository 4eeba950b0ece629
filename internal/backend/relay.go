package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4 << 20
	defaultSendBuf = 1024
	frameBuf       = 1024
)

type RelayConfig struct {
	// URL of a websocket endpoint speaking TDLib JSON, one object per message.
	URL string
	// Proxy is an optional proxy URL, e.g. socks5://127.0.0.1:1080.
	Proxy            string
	HandshakeTimeout time.Duration
	SendBuffer       int
}

// Relay is a Handle backed by a websocket connection to a tdjson relay.
// Lifecycle: Dial -> [readPump, writePump] -> Close.
type Relay struct {
	log    *slog.Logger
	conn   *websocket.Conn
	send   chan []byte
	frames chan *Frame

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	mu  sync.Mutex
	err error
}

func Dial(ctx context.Context, cfg RelayConfig, log *slog.Logger) (*Relay, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		pd, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
		}
		if cd, ok := pd.(proxy.ContextDialer); ok {
			dialer.NetDialContext = cd.DialContext
		} else {
			dialer.NetDial = pd.Dial
		}
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", cfg.URL, err)
	}

	sendBuf := cfg.SendBuffer
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	r := &Relay{
		log:    log,
		conn:   conn,
		send:   make(chan []byte, sendBuf),
		frames: make(chan *Frame, frameBuf),
		done:   make(chan struct{}),
	}
	r.wg.Add(2)
	go r.writePump()
	go r.readPump()

	return r, nil
}

func (r *Relay) Send(fn tdlib.Function, requestID uint64) error {
	select {
	case <-r.done:
		return r.closedErr()
	default:
	}
	data, err := tdlib.Encode(fn, requestID)
	if err != nil {
		return err
	}
	select {
	case r.send <- data:
		return nil
	case <-r.done:
		return r.closedErr()
	default:
		return ErrQueueFull
	}
}

func (r *Relay) Receive(timeout time.Duration) (*Frame, error) {
	select {
	case f := <-r.frames:
		return f, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-r.frames:
		return f, nil
	case <-r.done:
		return nil, r.closedErr()
	case <-timer.C:
		return nil, nil
	}
}

// Close stops both pumps and waits for them. Safe to call more than once.
func (r *Relay) Close() error {
	r.shutdown(ErrClosed)
	r.wg.Wait()

	return nil
}

func (r *Relay) shutdown(cause error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.err = cause
		r.mu.Unlock()
		close(r.done)
	})
}

func (r *Relay) closedErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil || errors.Is(r.err, ErrClosed) {
		return ErrClosed
	}

	return fmt.Errorf("%w: %w", ErrClosed, r.err)
}

func (r *Relay) readPump() {
	defer r.wg.Done()
	defer r.conn.Close()

	r.conn.SetReadLimit(maxFrameSize)
	if err := r.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		r.shutdown(err)
		return
	}
	r.conn.SetPongHandler(func(string) error {
		return r.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					r.log.Error("relay read failed", "error", err)
				}
				r.shutdown(err)
			}
			return
		}
		// any frame proves the peer is alive
		_ = r.conn.SetReadDeadline(time.Now().Add(pongWait))

		f, err := ParseFrame(raw)
		if err != nil {
			r.log.Warn("dropping malformed frame", "error", err)
			continue
		}
		select {
		case r.frames <- f:
		case <-r.done:
			return
		}
	}
}

func (r *Relay) writePump() {
	defer r.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		r.conn.Close()
	}()

	for {
		select {
		case <-r.done:
			_ = r.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := r.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
				r.log.Debug("relay close message", "error", err)
			}
			return
		case data := <-r.send:
			if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				r.shutdown(err)
				return
			}
			if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				r.log.Error("relay write failed", "error", err)
				r.shutdown(err)
				return
			}
		case <-ticker.C:
			if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				r.shutdown(err)
				return
			}
			if err := r.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.shutdown(err)
				return
			}
		}
	}
}
