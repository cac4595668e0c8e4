// Package login drives the two-phase Telegram login over plain
// request/response HTTP. BeginLogin opens an anonymous connection and parks
// the network's sign-in flow on a code it does not have yet; SubmitCode
// delivers the human-entered code and waits for the flow's verdict.
package login

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/filegram/filegram/credential"
	"github.com/filegram/filegram/internal/config"
	"github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/messaging"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Pending is a begun login: the id to submit the code against and a
// pending-kind credential that gates the submission step.
type Pending struct {
	ID         string
	Credential string
}

// Result is a completed login.
type Result struct {
	Credential string
	User       messaging.User
}

type outcome struct {
	user         messaging.User
	savedSession []byte
	err          error
}

// pendingLogin is the single owned aggregate for one in-flight login. The
// code channel is a single-assignment cell: resolved flips under the broker
// mutex before anything is sent, so the cell is fulfilled at most once.
type pendingLogin struct {
	id       string
	conn     messaging.Conn
	code     chan string
	outcome  chan outcome
	deadline time.Time
	resolved bool

	// ctx scopes the background sign-in flow; cancel unparks it when the
	// login is discarded before a code ever arrives.
	ctx    context.Context
	cancel context.CancelFunc
}

// Broker multiplexes concurrent in-flight logins.
type Broker struct {
	dialer messaging.Dialer
	codec  *credential.Codec
	ttl    time.Duration

	mu      sync.Mutex
	pending map[string]*pendingLogin

	baseCtx context.Context
	stop    context.CancelFunc
	swept   chan struct{}
}

// NewBroker starts the janitor goroutine; call Close to stop it and drop
// any logins still waiting for a code.
func NewBroker(dialer messaging.Dialer, codec *credential.Codec, cfg config.LoginConfig) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		dialer:  dialer,
		codec:   codec,
		ttl:     cfg.GetLoginTTL(),
		pending: make(map[string]*pendingLogin),
		baseCtx: ctx,
		stop:    cancel,
		swept:   make(chan struct{}),
	}
	go b.sweep(cfg.GetLoginSweepInterval())
	return b
}

// BeginLogin opens an anonymous connection and starts the sign-in flow for
// phone in the background. It returns as soon as the flow is parked waiting
// for its code; it never blocks on human input.
func (b *Broker) BeginLogin(ctx context.Context, phone string) (Pending, error) {
	if phone == "" {
		return Pending{}, fmt.Errorf("phone number is required")
	}

	conn, err := b.dialer.Dial(ctx, nil)
	if err != nil {
		return Pending{}, errors.Wrapf(err, "begin login")
	}

	// The pre-auth session blob seals the pending credential that the
	// submission step demands alongside the id.
	saved, err := conn.SavedSession(ctx)
	if err != nil {
		b.close(&pendingLogin{conn: conn})
		return Pending{}, errors.Wrapf(err, "begin login")
	}
	pendingCred, err := b.codec.EncodePending(saved)
	if err != nil {
		b.close(&pendingLogin{conn: conn})
		return Pending{}, errors.Wrapf(err, "begin login")
	}

	// The flow outlives the HTTP request that started it, so it runs on a
	// context derived from the broker's, not the request's.
	loginCtx, cancel := context.WithCancel(b.baseCtx)
	p := &pendingLogin{
		id:       uuid.New().String(),
		conn:     conn,
		code:     make(chan string, 1),
		outcome:  make(chan outcome, 1),
		deadline: NowTimeFunc().Add(b.ttl),
		ctx:      loginCtx,
		cancel:   cancel,
	}

	b.mu.Lock()
	b.pending[p.id] = p
	b.mu.Unlock()

	go func() {
		user, err := conn.SignIn(p.ctx, phone, func(ctx context.Context) (string, error) {
			select {
			case code := <-p.code:
				return code, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
		if err != nil {
			p.outcome <- outcome{err: err}
			return
		}

		saved, err := conn.SavedSession(p.ctx)
		if err != nil {
			p.outcome <- outcome{err: errors.Wrapf(err, "save session")}
			return
		}
		p.outcome <- outcome{user: user, savedSession: saved}
	}()

	log.Debug().Str("login_id", p.id).Msg("login begun, waiting for code")
	return Pending{ID: p.id, Credential: pendingCred}, nil
}

// SubmitCode fulfills the pending login's code cell and waits for the
// sign-in flow to finish. Whatever the verdict, the id is spent: a retry
// needs a fresh BeginLogin.
func (b *Broker) SubmitCode(ctx context.Context, id, code string) (Result, error) {
	p, err := b.claim(id)
	if err != nil {
		return Result{}, err
	}
	defer b.discard(p)

	p.code <- code

	var out outcome
	select {
	case out = <-p.outcome:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	if out.err != nil {
		log.Debug().Str("login_id", id).Err(out.err).Msg("sign in failed")
		return Result{}, errors.Wrapf(out.err, "submit code")
	}

	token, err := b.codec.EncodeAuthenticated(out.savedSession, out.user.ID)
	if err != nil {
		return Result{}, errors.Wrapf(err, "mint credential")
	}

	log.Info().Str("login_id", id).Int64("subject", out.user.ID).Msg("login completed")
	return Result{Credential: token, User: out.user}, nil
}

// claim marks the pending login resolved so no concurrent SubmitCode can
// race past the await. Unknown, expired, and already-claimed ids all look
// the same to the caller.
func (b *Broker) claim(id string) (*pendingLogin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[id]
	if !ok || p.resolved {
		return nil, errors.Wrapf(errors.ErrLoginNotFound, "id %q", id)
	}
	if NowTimeFunc().After(p.deadline) {
		delete(b.pending, id)
		go b.close(p)
		return nil, errors.Wrapf(errors.ErrLoginNotFound, "id %q expired", id)
	}
	p.resolved = true
	return p, nil
}

func (b *Broker) discard(p *pendingLogin) {
	b.mu.Lock()
	delete(b.pending, p.id)
	b.mu.Unlock()
	b.close(p)
}

func (b *Broker) close(p *pendingLogin) {
	if p.cancel != nil {
		p.cancel()
	}
	if err := p.conn.Close(); err != nil {
		log.Err(err).Str("login_id", p.id).Msg("closing pending login connection")
	}
}

// sweep evicts logins whose code never arrived. Cancelling the login's
// context unparks its sign-in goroutine before the connection is closed.
func (b *Broker) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.baseCtx.Done():
			close(b.swept)
			return
		case <-ticker.C:
		}

		now := NowTimeFunc()
		var expired []*pendingLogin
		b.mu.Lock()
		for id, p := range b.pending {
			if !p.resolved && now.After(p.deadline) {
				delete(b.pending, id)
				expired = append(expired, p)
			}
		}
		b.mu.Unlock()

		for _, p := range expired {
			log.Info().Str("login_id", p.id).Msg("evicting expired login")
			b.close(p)
		}
	}
}

// PendingCount reports how many logins are still awaiting a code.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops the janitor and drops every in-flight login.
func (b *Broker) Close() {
	b.stop()
	<-b.swept

	b.mu.Lock()
	remaining := make([]*pendingLogin, 0, len(b.pending))
	for id, p := range b.pending {
		delete(b.pending, id)
		remaining = append(remaining, p)
	}
	b.mu.Unlock()

	for _, p := range remaining {
		b.close(p)
	}
}
