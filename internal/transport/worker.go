package transport

import (
	"bytes"
	"net"
	"sync"
	"time"

	"aetherime/internal/logging"
	"aetherime/internal/wire"
)

const (
	// pollInterval bounds how long a read blocks before the worker checks
	// the outbox and the stop flag again.
	pollInterval = 20 * time.Millisecond

	// reconnectWait is the total back-off after a failed connect, broken
	// into reconnectSlice chunks so Stop stays responsive.
	reconnectWait  = 300 * time.Millisecond
	reconnectSlice = 50 * time.Millisecond
)

// ResponseFunc receives each decoded suggestion response. It is invoked on
// the worker goroutine; implementations must hand the value over to the UI
// thread rather than touch engine state directly.
type ResponseFunc func(wire.SuggestionResponse)

// Worker owns the streaming daemon connection. Frames are enqueued from the
// UI thread and written in FIFO order; response lines are decoded and handed
// to the callback. The socket is closed and re-dialed on any error.
type Worker struct {
	mu       sync.Mutex
	endpoint Endpoint
	outbox   [][]byte
	stop     bool

	cb   ResponseFunc
	done chan struct{}
	log  *logging.Logger
}

// NewWorker creates a worker for the given endpoint. Start must be called
// before frames are delivered.
func NewWorker(ep Endpoint) *Worker {
	return &Worker{
		endpoint: ep,
		log:      logging.Default().WithComponent("worker"),
	}
}

// SetEndpoint replaces the daemon endpoint. The new value is used on the
// next (re)connect.
func (w *Worker) SetEndpoint(ep Endpoint) {
	w.mu.Lock()
	w.endpoint = ep
	w.mu.Unlock()
}

// Start launches the background loop. A previous run is stopped first.
func (w *Worker) Start(cb ResponseFunc) {
	w.Stop()

	w.mu.Lock()
	w.stop = false
	w.cb = cb
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run()
}

// Stop signals the loop, waits for it to exit, and drops any queued frames.
func (w *Worker) Stop() {
	w.mu.Lock()
	done := w.done
	w.stop = true
	w.mu.Unlock()

	if done != nil {
		<-done
	}

	w.mu.Lock()
	w.outbox = nil
	w.done = nil
	w.mu.Unlock()
}

// Enqueue appends a frame to the outbox.
func (w *Worker) Enqueue(frame []byte) {
	w.mu.Lock()
	w.outbox = append(w.outbox, frame)
	w.mu.Unlock()
}

// EnqueueCancel appends a cancel frame for the given request id. The worker
// does not wait for an acknowledgement.
func (w *Worker) EnqueueCancel(requestID string) {
	frame, err := wire.EncodeCancel(requestID)
	if err != nil {
		return
	}
	w.Enqueue(frame)
}

func (w *Worker) stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop
}

func (w *Worker) run() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	defer close(done)

	var conn net.Conn
	var recvBuf []byte

	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		if w.stopped() {
			return
		}

		if conn == nil {
			w.mu.Lock()
			ep := w.endpoint
			w.mu.Unlock()

			c, err := dial(ep, time.Second)
			if err != nil {
				// Sleep in short slices so Stop is never held up long.
				for waited := time.Duration(0); waited < reconnectWait; waited += reconnectSlice {
					if w.stopped() {
						return
					}
					time.Sleep(reconnectSlice)
				}
				continue
			}
			conn = c
			recvBuf = recvBuf[:0]
			w.log.Debug("connected", "endpoint", ep.String())
		}

		// Drain the outbox in enqueue order.
		for {
			w.mu.Lock()
			if len(w.outbox) == 0 {
				w.mu.Unlock()
				break
			}
			frame := w.outbox[0]
			w.outbox = w.outbox[1:]
			w.mu.Unlock()

			if err := writeAll(conn, frame); err != nil {
				w.log.Debug("send failed, reconnecting", "error", err)
				conn.Close()
				conn = nil
				break
			}
		}
		if conn == nil {
			continue
		}

		// Bounded read so the loop keeps observing outbox and stop flag.
		conn.SetReadDeadline(time.Now().Add(pollInterval))
		buf := make([]byte, 2048)
		n, err := conn.Read(buf)
		if n > 0 {
			recvBuf = append(recvBuf, buf[:n]...)
			recvBuf = w.deliverLines(recvBuf)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			w.log.Debug("recv failed, reconnecting", "error", err)
			conn.Close()
			conn = nil
		}
	}
}

// deliverLines splits complete lines off the receive accumulator, decodes
// each, and forwards suggestion responses. Returns the unconsumed remainder.
func (w *Worker) deliverLines(buf []byte) []byte {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf
		}
		line := buf[:idx]
		buf = buf[idx+1:]

		rsp, err := wire.DecodeResponse(line)
		if err != nil {
			continue
		}
		if rsp.Suggestion != nil && w.cb != nil {
			w.cb(*rsp.Suggestion)
		}
	}
}

func writeAll(conn net.Conn, frame []byte) error {
	for len(frame) > 0 {
		n, err := conn.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}
