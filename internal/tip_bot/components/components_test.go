package components

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// fakeWallets hands out deterministic wallets and counts how many were generated
type fakeWallets struct {
	mu         sync.Mutex
	generated  int
	onGenerate func()
}

func (f *fakeWallets) GenerateWallet() (account.Wallet, error) {
	f.mu.Lock()
	f.generated++
	n := f.generated
	f.mu.Unlock()

	if f.onGenerate != nil {
		f.onGenerate()
	}
	return account.Wallet{Address: fmt.Sprintf("ADDR%d", n), SealedKey: []byte{byte(n)}}, nil
}

func (f *fakeWallets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generated
}

type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) SuggestedFee(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerClient) BalanceOf(ctx context.Context, address string) (int64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerClient) Submit(ctx context.Context, t chain.Transfer) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *MockLedgerClient) ConfirmationStatus(ctx context.Context, chainTxID string) (chain.Status, error) {
	args := m.Called(ctx, chainTxID)
	return args.Get(0).(chain.Status), args.Error(1)
}

func (m *MockLedgerClient) ValidAddress(addr string) bool {
	return m.Called(addr).Bool(0)
}

func (m *MockLedgerClient) GenerateWallet() (account.Wallet, error) {
	args := m.Called()
	return args.Get(0).(account.Wallet), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Reply(ctx context.Context, ev event.Event, text string) error {
	return m.Called(ctx, ev, text).Error(0)
}

func (m *MockNotifier) DirectMessage(ctx context.Context, identity, subject, text string) error {
	return m.Called(ctx, identity, subject, text).Error(0)
}
