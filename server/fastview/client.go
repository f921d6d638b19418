package fastview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which ele-updates will be sent to the client, so as not to overburden.
	pubResolution  = time.Millisecond * 50
	pingResolution = time.Millisecond * 500
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes updates unidirectionally to a single browser page via websocket.
// Items in the updates chan must be idempotent: updates arriving faster than the publication
// rate are coalesced, keeping only the latest operation per element id.
type Client struct {
	updates <-chan []EleUpdate
	ws      *websock
	rootCtx context.Context
	logger  *slog.Logger
}

// NewClient upgrades the request to a websocket and returns a publisher for it.
func NewClient(
	updates <-chan []EleUpdate,
	w http.ResponseWriter,
	r *http.Request,
) (*Client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Client{
		updates: updates,
		ws:      newWebsock(ws),
		rootCtx: r.Context(),
		logger:  slog.Default().With("remote", r.RemoteAddr),
	}, nil
}

// Sync publishes incoming updates until the client disconnects, the updates chan closes,
// or the request context is cancelled. It returns nil on a normal disconnect.
func (cli *Client) Sync() error {
	defer cli.ws.Close()

	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	err := group.Wait()
	if isClosure(err) || errors.Is(err, errPublishDone) {
		return nil
	}
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// errPublishDone tears down the client's other routines once there is nothing left to publish.
var errPublishDone = errors.New("publication complete")

// Runs the ping-pong for the client liveness check.
// This requires readMessages to be running, since the pong handler is called from reads.
func (cli *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			err := cli.ws.Write(ctx, func(ws *websocket.Conn) error {
				return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

// readMessages drains messages from the client. Errors returned by websocket reads are
// permanent, hence any error tears the client down.
func (cli *Client) readMessages(ctx context.Context) error {
	// Reads block until a message or a deadline; expire the deadline on teardown.
	go func() {
		<-ctx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	}()

	for {
		if _, _, err := cli.ws.Conn().ReadMessage(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isError(err) {
				return fmt.Errorf("read: %w", err)
			}
			return err
		}
	}
}

func (cli *Client) publish(ctx context.Context) error {
	pending := map[string]EleUpdate{}
	flush := channerics.NewTicker(ctx.Done(), pubResolution)

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			if !ok {
				if err := cli.write(ctx, pending); err != nil {
					return err
				}
				return errPublishDone
			}
			// Later updates for an element overwrite earlier ones within a publication window.
			for _, update := range updates {
				pending[update.EleId] = update
			}
		case <-flush:
			if len(pending) == 0 {
				continue
			}
			if err := cli.write(ctx, pending); err != nil {
				return err
			}
			pending = map[string]EleUpdate{}
		}
	}
}

func (cli *Client) write(ctx context.Context, pending map[string]EleUpdate) error {
	if len(pending) == 0 {
		return nil
	}
	batch := make([]EleUpdate, 0, len(pending))
	for _, update := range pending {
		batch = append(batch, update)
	}

	return cli.ws.Write(ctx, func(ws *websocket.Conn) error {
		if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
		if err := ws.WriteJSON(batch); err != nil {
			cli.logger.Debug("publish failed", "error", err)
			return fmt.Errorf("publish: %w", err)
		}
		return nil
	})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

// websock serializes writes to the websocket, which permits only one concurrent writer.
type websock struct {
	// A mutex, but channel semantics allow a timed acquire.
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket, for setup and for the single reader.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the connection. Call only once no writers remain.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	sock.ws.Close()
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
