package login_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filegram/filegram/credential"
	apperrors "github.com/filegram/filegram/internal/errors"
	"github.com/filegram/filegram/login"
	"github.com/filegram/filegram/messaging/messagingtest"
)

type testTokenConfig struct{}

func (testTokenConfig) GetTokenKey() []byte                 { return []byte("auth-key-for-tests") }
func (testTokenConfig) GetSignInTokenKey() []byte           { return []byte("signin-key-for-tests") }
func (testTokenConfig) GetTokenExpiry() time.Duration       { return time.Hour }
func (testTokenConfig) GetSignInTokenExpiry() time.Duration { return 10 * time.Minute }

type testLoginConfig struct {
	ttl   time.Duration
	sweep time.Duration
}

func (c testLoginConfig) GetLoginTTL() time.Duration           { return c.ttl }
func (c testLoginConfig) GetLoginSweepInterval() time.Duration { return c.sweep }

type testFixture struct {
	network *messagingtest.FakeNetwork
	codec   *credential.Codec
	broker  *login.Broker
}

func setupTestFixture(t *testing.T, cfg testLoginConfig) *testFixture {
	t.Helper()

	if cfg.ttl == 0 {
		cfg.ttl = time.Minute
	}
	if cfg.sweep == 0 {
		cfg.sweep = time.Minute
	}

	network := messagingtest.NewFakeNetwork()
	codec := credential.NewCodec(testTokenConfig{})
	broker := login.NewBroker(network, codec, cfg)
	t.Cleanup(broker.Close)

	return &testFixture{network: network, codec: codec, broker: broker}
}

func TestBeginLoginMintsFreshIDs(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	first, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)
	second, err := f.broker.BeginLogin(context.Background(), "+15550101")
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 2, f.broker.PendingCount())

	// The pending credential verifies with the sign-in key only
	_, err = f.codec.Decode(first.Credential, credential.KindPending)
	require.NoError(t, err)
	_, err = f.codec.Decode(first.Credential, credential.KindAuthenticated)
	require.Error(t, err)
}

func TestBeginLoginRequiresPhone(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	_, err := f.broker.BeginLogin(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, 0, f.broker.PendingCount())
}

func TestBeginLoginDialFailure(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})
	f.network.DialErr = apperrors.ErrUpstreamUnavailable

	_, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	require.Equal(t, 0, f.broker.PendingCount())
}

func TestSubmitCodeUnknownID(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	_, err := f.broker.SubmitCode(context.Background(), "no-such-login", "13579")
	require.ErrorIs(t, err, apperrors.ErrLoginNotFound)
}

func TestLoginSucceedsWithCorrectCode(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	pending, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)

	result, err := f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
	require.NoError(t, err)
	require.Equal(t, f.network.Account, result.User)

	payload, err := f.codec.Decode(result.Credential, credential.KindAuthenticated)
	require.NoError(t, err)
	require.Equal(t, f.network.Session, payload.SavedSession)
	require.Equal(t, f.network.Account.ID, payload.SubjectID)

	// The pending entry is spent and its connection released
	require.Equal(t, 0, f.broker.PendingCount())
	require.Equal(t, 0, f.network.OpenConns())

	_, err = f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
	require.ErrorIs(t, err, apperrors.ErrLoginNotFound)
}

func TestLoginRejectedWithWrongCode(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	pending, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)

	_, err = f.broker.SubmitCode(context.Background(), pending.ID, "00000")
	require.ErrorIs(t, err, apperrors.ErrSignInRejected)

	// A rejected login is spent, a second submission finds nothing
	require.Equal(t, 0, f.broker.PendingCount())
	require.Equal(t, 0, f.network.OpenConns())

	_, err = f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
	require.ErrorIs(t, err, apperrors.ErrLoginNotFound)
}

func TestConcurrentSubmitsResolveExactlyOnce(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{})

	pending, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)

	var wg sync.WaitGroup
	outcomes := make([]error, 2)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outcomes[i] = f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
		}(i)
	}
	wg.Wait()

	var succeeded, notFound int
	for _, err := range outcomes {
		switch {
		case err == nil:
			succeeded++
		case apperrors.Is(err, apperrors.ErrLoginNotFound):
			notFound++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, notFound)
	require.Equal(t, 0, f.network.OpenConns())
}

func TestExpiredLoginIsEvicted(t *testing.T) {
	f := setupTestFixture(t, testLoginConfig{ttl: 20 * time.Millisecond, sweep: 5 * time.Millisecond})

	pending, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.broker.PendingCount() == 0 && f.network.OpenConns() == 0
	}, time.Second, 5*time.Millisecond)

	_, err = f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
	require.ErrorIs(t, err, apperrors.ErrLoginNotFound)
}

func TestExpiredLoginRejectedOnAccess(t *testing.T) {
	// Sweep far in the future, so only the check-on-access can catch it
	f := setupTestFixture(t, testLoginConfig{ttl: 10 * time.Millisecond, sweep: time.Hour})

	pending, err := f.broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = f.broker.SubmitCode(context.Background(), pending.ID, f.network.AcceptCode)
	require.ErrorIs(t, err, apperrors.ErrLoginNotFound)

	require.Eventually(t, func() bool { return f.network.OpenConns() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseDropsInFlightLogins(t *testing.T) {
	network := messagingtest.NewFakeNetwork()
	codec := credential.NewCodec(testTokenConfig{})
	broker := login.NewBroker(network, codec, testLoginConfig{ttl: time.Minute, sweep: time.Minute})

	_, err := broker.BeginLogin(context.Background(), "+15550100")
	require.NoError(t, err)
	_, err = broker.BeginLogin(context.Background(), "+15550101")
	require.NoError(t, err)

	broker.Close()

	require.Equal(t, 0, broker.PendingCount())
	require.Equal(t, 0, network.OpenConns())
}
