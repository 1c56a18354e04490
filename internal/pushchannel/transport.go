package pushchannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport names accepted in Options.Transports
const (
	TransportWebsocket = "websocket"
	TransportPolling   = "polling"
)

var errTransportClosed = errors.New("transport closed")

// transport moves Engine.IO packets over one underlying connection.
// ReadPacket is only called from the session goroutine; WritePacket and
// Close may be called concurrently.
type transport interface {
	Name() string
	ReadPacket() (string, error)
	WritePacket(pkt string) error
	Close() error
}

type wsTransport struct {
	conn      *websocket.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
}

func dialWebsocket(ctx context.Context, dialer *websocket.Dialer, u *url.URL) (*wsTransport, error) {
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) Name() string { return TransportWebsocket }

func (t *wsTransport) ReadPacket() (string, error) {
	_, p, err := t.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func (t *wsTransport) WritePacket(pkt string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, []byte(pkt))
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.wmu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.wmu.Unlock()
		err = t.conn.Close()
	})
	return err
}

// pollingTransport speaks Engine.IO long-polling: GET to receive, POST to send.
type pollingTransport struct {
	client  *http.Client
	base    *url.URL
	sid     string
	pending []string

	ctx       context.Context
	cancel    context.CancelFunc
	wmu       sync.Mutex
	closeOnce sync.Once
}

func dialPolling(ctx context.Context, client *http.Client, u *url.URL) (*pollingTransport, error) {
	tctx, cancel := context.WithCancel(ctx)
	t := &pollingTransport{client: client, base: u, ctx: tctx, cancel: cancel}

	body, err := t.get()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	t.pending = splitPayload(body)
	if len(t.pending) == 0 {
		cancel()
		return nil, fmt.Errorf("polling handshake: empty payload: %w", errMalformedPacket)
	}
	hs, err := decodeHandshake(t.pending[0])
	if err != nil {
		cancel()
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	t.sid = hs.SID
	return t, nil
}

func (t *pollingTransport) Name() string { return TransportPolling }

func (t *pollingTransport) endpoint() string {
	u := *t.base
	q := u.Query()
	if t.sid != "" {
		q.Set("sid", t.sid)
	}
	q.Set("t", uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *pollingTransport) get() (string, error) {
	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, t.endpoint(), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("polling GET: unexpected status %d", resp.StatusCode)
	}
	return string(b), nil
}

func (t *pollingTransport) ReadPacket() (string, error) {
	for len(t.pending) == 0 {
		if t.ctx.Err() != nil {
			return "", errTransportClosed
		}
		body, err := t.get()
		if err != nil {
			if t.ctx.Err() != nil {
				return "", errTransportClosed
			}
			return "", err
		}
		t.pending = splitPayload(body)
	}
	pkt := t.pending[0]
	t.pending = t.pending[1:]
	return pkt, nil
}

func (t *pollingTransport) WritePacket(pkt string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if t.ctx.Err() != nil {
		return errTransportClosed
	}
	return t.post(t.ctx, pkt)
}

func (t *pollingTransport) post(ctx context.Context, pkt string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(), strings.NewReader(pkt))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polling POST: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollingTransport) Close() error {
	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = t.post(ctx, string(engineClose))
		t.cancel()
	})
	return nil
}
