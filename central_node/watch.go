package central_node

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

// Live model feed: every completed /process_model computation is pushed to
// the websocket subscribers of /model_updates, so a dashboard can follow the
// discovered net as events keep streaming in.

const (
	writeWait      = time.Second
	pingResolution = 200 * time.Millisecond
	// Pings tolerated before concluding the peer is gone.
	pongWait = pingResolution * 10
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded reports a subscriber that stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("central_node: subscriber disconnect, pong deadline exceeded")

// watchHub fans the latest model out to all subscribers. Slow subscribers
// miss intermediate models rather than block the publisher; each push is a
// complete snapshot, so only the latest one matters.
type watchHub struct {
	mu   sync.Mutex
	subs map[chan string]bool
}

func newWatchHub() *watchHub {
	return &watchHub{subs: map[chan string]bool{}}
}

func (h *watchHub) subscribe() chan string {
	ch := make(chan string, 1)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()
	return ch
}

func (h *watchHub) unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *watchHub) publish(pnml string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		// Replace a pending model the subscriber has not read yet.
		select {
		case ch <- pnml:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- pnml:
			default:
			}
		}
	}
}

// handleModelUpdates upgrades the request and streams models until the
// client goes away.
func (n *Node) handleModelUpdates(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		n.logger.Printf("model_updates: upgrade: %v", err)
		return
	}

	updates := n.hub.subscribe()
	defer n.hub.unsubscribe(updates)

	sub := &subscriber{updates: updates, ws: newWebsock(ws)}
	if err := sub.sync(r.Context()); err != nil {
		n.logger.Printf("model_updates: %v", err)
	}
}

// subscriber pumps models to one websocket client. The read pump must run
// for the pong handler to fire; all three goroutines tear down together.
type subscriber struct {
	updates <-chan string
	ws      *websock
}

func (s *subscriber) sync(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.readMessages(groupCtx) })
	group.Go(func() error { return s.pingPong(groupCtx) })
	group.Go(func() error { return s.publish(groupCtx) })

	// A blocked ReadMessage only returns once the connection dies, so force
	// the close as soon as any pump gives up.
	go func() {
		<-groupCtx.Done()
		s.ws.close()
	}()

	err := group.Wait()
	if isClosure(err) {
		return nil
	}
	return err
}

func (s *subscriber) readMessages(ctx context.Context) error {
	for {
		err := s.ws.read(ctx, func(ws *websocket.Conn) error {
			_, _, readErr := ws.ReadMessage()
			return readErr
		})
		if err != nil {
			return err
		}
	}
}

func (s *subscriber) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	defer close(pong)
	s.ws.conn().SetPongHandler(func(string) error {
		pong <- struct{}{}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			err := s.ws.write(ctx, func(ws *websocket.Conn) error {
				return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (s *subscriber) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pnml, ok := <-s.updates:
			if !ok {
				return nil
			}
			err := s.ws.write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return err
				}
				return ws.WriteJSON(map[string]string{"net": pnml})
			})
			if err != nil {
				return err
			}
		}
	}
}

func isClosure(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway))
}

// ErrSockCongestion indicates too many waiters on the socket for an op.
var ErrSockCongestion = errors.New("central_node: websocket op timed out on semaphore")

const sockOpDeadline = time.Second

// websock serializes reads and writes to the underlying connection, which
// allows only one concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// conn exposes the raw connection for setup only (handlers etc.).
func (sock *websock) conn() *websocket.Conn { return sock.ws }

func (sock *websock) close() {
	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	sock.ws.Close()
}

func (sock *websock) read(ctx context.Context, readFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

func (sock *websock) write(ctx context.Context, writeFn func(*websocket.Conn) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(sockOpDeadline):
		return ErrSockCongestion
	}
}
