// Package messagingtest provides a scripted in-memory messaging network for
// tests. One FakeNetwork backs every connection it dials, so files sent on
// one connection are visible to later ones, like the real network.
package messagingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

var _ messaging.Dialer = (*FakeNetwork)(nil)

type storedMessage struct {
	text string
	file *messaging.Attachment
}

// FakeNetwork is a fake messaging.Dialer. The zero value is not usable,
// use NewFakeNetwork.
type FakeNetwork struct {
	lock sync.Mutex

	// Account is the identity reported after a successful sign-in.
	Account messaging.User
	// AcceptCode is the only one-time code SignIn accepts.
	AcceptCode string
	// Session is the saved-session blob handed out after sign-in.
	Session []byte
	// PreAuthSession is the blob an anonymous connection saves before
	// sign-in completes.
	PreAuthSession []byte

	// DialErr, when set, fails every Dial.
	DialErr error
	// SendFileErr, when set, fails every SendFile.
	SendFileErr error

	messages map[int]*storedMessage
	nextID   int

	dialed       []*FakeConn
	restoredWith [][]byte
}

func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		Account:        messaging.User{ID: 7331, Username: "tester", Phone: "+15550100"},
		AcceptCode:     "13579",
		Session:        []byte(`{"dc":2,"auth_key":"fake"}`),
		PreAuthSession: []byte(`{"dc":2}`),
		messages:       make(map[int]*storedMessage),
		nextID:         100,
	}
}

func (n *FakeNetwork) Dial(ctx context.Context, savedSession []byte) (messaging.Conn, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.DialErr != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "fake dial")
	}

	c := &FakeConn{network: n, authorized: len(savedSession) > 0}
	n.dialed = append(n.dialed, c)
	if len(savedSession) > 0 {
		n.restoredWith = append(n.restoredWith, savedSession)
	}
	return c, nil
}

// OpenConns returns how many dialed connections have not been closed.
func (n *FakeNetwork) OpenConns() int {
	n.lock.Lock()
	defer n.lock.Unlock()

	open := 0
	for _, c := range n.dialed {
		if c.closeCount() == 0 {
			open++
		}
	}
	return open
}

// Dialed returns every connection handed out so far.
func (n *FakeNetwork) Dialed() []*FakeConn {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]*FakeConn(nil), n.dialed...)
}

// RestoredSessions returns the saved-session blobs Dial was given.
func (n *FakeNetwork) RestoredSessions() [][]byte {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([][]byte(nil), n.restoredWith...)
}

func (n *FakeNetwork) storeMessage(m *storedMessage) int {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.nextID++
	n.messages[n.nextID] = m
	return n.nextID
}

func (n *FakeNetwork) message(id int) (*storedMessage, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()

	m, ok := n.messages[id]
	return m, ok
}

var _ messaging.Conn = (*FakeConn)(nil)

type FakeConn struct {
	network    *FakeNetwork
	lock       sync.Mutex
	authorized bool
	signedIn   bool
	closed     int
}

func (c *FakeConn) SignIn(ctx context.Context, phone string, prompt messaging.CodePrompt) (messaging.User, error) {
	code, err := prompt(ctx)
	if err != nil {
		return messaging.User{}, err
	}
	if code != c.network.AcceptCode {
		return messaging.User{}, errors.Wrapf(errors.ErrSignInRejected, "code %q", code)
	}

	c.lock.Lock()
	c.authorized = true
	c.signedIn = true
	c.lock.Unlock()
	return c.network.Account, nil
}

func (c *FakeConn) SavedSession(ctx context.Context) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.authorized {
		return c.network.PreAuthSession, nil
	}
	return c.network.Session, nil
}

func (c *FakeConn) SendMessage(ctx context.Context, text string) (int, error) {
	if err := c.checkUsable(); err != nil {
		return 0, err
	}
	return c.network.storeMessage(&storedMessage{text: text}), nil
}

func (c *FakeConn) GetMessage(ctx context.Context, msgID int) (messaging.Message, error) {
	if err := c.checkUsable(); err != nil {
		return messaging.Message{}, err
	}
	m, ok := c.network.message(msgID)
	if !ok {
		return messaging.Message{}, errors.Wrapf(errors.ErrNotFound, "message %d", msgID)
	}
	return messaging.Message{ID: msgID, Text: m.text}, nil
}

func (c *FakeConn) SendFile(ctx context.Context, f messaging.OutgoingFile) (int, error) {
	if err := c.checkUsable(); err != nil {
		return 0, err
	}
	if c.network.SendFileErr != nil {
		return 0, c.network.SendFileErr
	}

	att := messaging.Attachment{
		Name:     f.Name,
		MimeType: f.MimeType,
		Data:     append([]byte(nil), f.Data...),
	}
	return c.network.storeMessage(&storedMessage{file: &att}), nil
}

func (c *FakeConn) FetchFile(ctx context.Context, msgID int) (messaging.Attachment, error) {
	if err := c.checkUsable(); err != nil {
		return messaging.Attachment{}, err
	}
	m, ok := c.network.message(msgID)
	if !ok || m.file == nil {
		return messaging.Attachment{}, errors.Wrapf(errors.ErrNotFound, "message %d", msgID)
	}
	return *m.file, nil
}

func (c *FakeConn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.closed++
	return nil
}

// CloseCount reports how many times Close was called on this connection.
func (c *FakeConn) CloseCount() int {
	return c.closeCount()
}

func (c *FakeConn) closeCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

func (c *FakeConn) checkUsable() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed > 0 {
		return fmt.Errorf("connection used after close")
	}
	if !c.authorized {
		return errors.Wrapf(errors.ErrUpstreamUnavailable, "not authorized")
	}
	return nil
}
