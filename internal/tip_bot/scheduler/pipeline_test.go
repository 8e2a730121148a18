package scheduler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/custodial-tipbot/internal/config"
	redisdata "github.com/custodial-tipbot/internal/data/redis"
	"github.com/custodial-tipbot/internal/domain/account"
	"github.com/custodial-tipbot/internal/domain/audit"
	"github.com/custodial-tipbot/internal/domain/event"
	"github.com/custodial-tipbot/internal/domain/outbox"
	"github.com/custodial-tipbot/internal/domain/shared"
	"github.com/custodial-tipbot/internal/domain/transaction"
	"github.com/custodial-tipbot/internal/platform/chain"
	"github.com/custodial-tipbot/internal/tip_bot/components"
	"github.com/custodial-tipbot/internal/tip_bot/consumer"
	"github.com/custodial-tipbot/internal/tip_bot/replies"
	"github.com/custodial-tipbot/internal/tip_bot/scheduler"
	"github.com/custodial-tipbot/internal/tip_bot/tracker"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testFee     = 1_000
	testReserve = 100_000
)

// fakeChain is an in-memory ledger that confirms every submitted transfer
type fakeChain struct {
	mu        sync.Mutex
	balances  map[string]int64
	submitted map[string]chain.Transfer
	calls     int
	wallets   int
	down      bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: map[string]int64{}, submitted: map[string]chain.Transfer{}}
}

func (c *fakeChain) unavailable() error {
	return fmt.Errorf("node unreachable: %w", chain.ErrLedgerUnavailable)
}

func (c *fakeChain) SuggestedFee(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.down {
		return 0, c.unavailable()
	}
	return testFee, nil
}

func (c *fakeChain) BalanceOf(_ context.Context, address string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.down {
		return 0, c.unavailable()
	}
	return c.balances[address], nil
}

func (c *fakeChain) Submit(_ context.Context, t chain.Transfer) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.down {
		return "", c.unavailable()
	}
	c.balances[t.FromAddress] -= t.Amount + t.Fee
	c.balances[t.To] += t.Amount
	if t.CloseAccount {
		c.balances[t.To] += c.balances[t.FromAddress]
		c.balances[t.FromAddress] = 0
	}
	id := fmt.Sprintf("CHAIN%d", len(c.submitted)+1)
	c.submitted[id] = t
	return id, nil
}

func (c *fakeChain) ConfirmationStatus(_ context.Context, chainTxID string) (chain.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.submitted[chainTxID]; !ok {
		return chain.Status{Kind: chain.StatusPending}, nil
	}
	return chain.Status{Kind: chain.StatusConfirmed, Round: 42}, nil
}

func (c *fakeChain) ValidAddress(addr string) bool {
	return strings.HasPrefix(addr, "ADDR") || strings.HasPrefix(addr, "EXT")
}

func (c *fakeChain) GenerateWallet() (account.Wallet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets++
	return account.Wallet{Address: fmt.Sprintf("ADDR%d", c.wallets), SealedKey: []byte{byte(c.wallets)}}, nil
}

func (c *fakeChain) fund(address string, micro int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[address] += micro
}

func (c *fakeChain) balance(address string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[address]
}

func (c *fakeChain) submissions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.submitted)
}

type fakeDirectory struct {
	identities map[string]bool
	moderators map[string]string // identity -> channel
}

func (d *fakeDirectory) IdentityExists(_ context.Context, identity string) (bool, error) {
	return d.identities[identity], nil
}

func (d *fakeDirectory) ChannelExists(context.Context, string) (bool, error) {
	return true, nil
}

func (d *fakeDirectory) IsModerator(_ context.Context, identity, channel string) (bool, error) {
	return d.moderators[identity] == channel, nil
}

// memoryOutbox keeps queued notifications in memory
type memoryOutbox struct {
	mu       sync.Mutex
	messages []*outbox.Message
}

func (o *memoryOutbox) Create(_ context.Context, m *outbox.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	m.ID = int64(len(o.messages) + 1)
	o.messages = append(o.messages, m)
	return nil
}

func (o *memoryOutbox) GetPending(context.Context, int) ([]*outbox.Message, error) { return nil, nil }
func (o *memoryOutbox) UpdateStatus(context.Context, int64, shared.OutboxStatus) error {
	return nil
}
func (o *memoryOutbox) IncrementAttempts(context.Context, int64) error { return nil }
func (o *memoryOutbox) Delete(context.Context, int64) error            { return nil }
func (o *memoryOutbox) GetByNotificationID(context.Context, uuid.UUID) (*outbox.Message, error) {
	return nil, outbox.ErrMessageNotFound{}
}
func (o *memoryOutbox) WithTx(pgx.Tx) outbox.Repository { return o }

// notifications returns the queued notifications addressed to recipient
func (o *memoryOutbox) notifications(t *testing.T, recipient string) []*shared.Notification {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*shared.Notification
	for _, m := range o.messages {
		n, err := m.GetNotification()
		require.NoError(t, err)
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

// memoryAudit is an in-memory audit log
type memoryAudit struct {
	mu      sync.Mutex
	entries map[uint64]*audit.Entry
}

func (a *memoryAudit) Create(_ context.Context, e *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[e.CommandID]; ok {
		return audit.ErrDuplicateEntry{CommandID: e.CommandID}
	}
	cp := *e
	a.entries[e.CommandID] = &cp
	return nil
}

func (a *memoryAudit) GetByCommandID(_ context.Context, id uint64) (*audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, audit.ErrEntryNotFound{CommandID: id}
}

func (a *memoryAudit) GetByEventID(_ context.Context, eventID string) (*audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.EventID == eventID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (a *memoryAudit) GetByAuthor(context.Context, string, int, int) ([]*audit.Entry, error) {
	return nil, nil
}
func (a *memoryAudit) CountByAuthor(context.Context, string) (int64, error) { return 0, nil }
func (a *memoryAudit) GetByTimeRange(context.Context, time.Time, time.Time, int, int) ([]*audit.Entry, error) {
	return nil, nil
}

func (a *memoryAudit) UpdateOutcome(_ context.Context, id uint64, outcome audit.Outcome, detail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return audit.ErrEntryNotFound{CommandID: id}
	}
	e.Outcome = outcome
	e.Detail = detail
	return nil
}

func (a *memoryAudit) outcome(t *testing.T, eventID string) audit.Outcome {
	t.Helper()
	e, err := a.GetByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, e, "event %s was not audited", eventID)
	return e.Outcome
}

type nopDLQ struct{ published []string }

func (d *nopDLQ) PublishToDLQ(_ context.Context, key string, _ []byte, _ string) error {
	d.published = append(d.published, key)
	return nil
}
func (d *nopDLQ) Close() error { return nil }

// sliceSource delivers one queued batch per fetch
type sliceSource struct {
	batches [][]event.Event
}

func (s *sliceSource) push(events ...event.Event) { s.batches = append(s.batches, events) }

func (s *sliceSource) FetchNewEvents(context.Context) ([]event.Event, error) {
	if len(s.batches) == 0 {
		return nil, nil
	}
	next := s.batches[0]
	s.batches = s.batches[1:]
	return next, nil
}

func (s *sliceSource) MarkConsumed(context.Context, []event.Event) error { return nil }

type pipeline struct {
	loop     *scheduler.Loop
	source   *sliceSource
	chain    *fakeChain
	outbox   *memoryOutbox
	audit    *memoryAudit
	dlq      *nopDLQ
	accounts *redisdata.AccountRepository
	txRepo   *redisdata.TransactionRepository
	channels *redisdata.ChannelRepository
	tracker  *tracker.Tracker
	mr       *miniredis.Miniredis
}

func newPipeline(t *testing.T, poolSize int) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Bot: config.BotConfig{
			Name:              "tipbot",
			CommentPrefixes:   "!atip",
			CycleInterval:     time.Millisecond,
			ConfirmationEvery: 1,
			MaxEventRetries:   3,
			IdempotencyTTL:    time.Hour,
			SeenCacheSize:     100,
			ReserveMicro:      testReserve,
			FirstContactMicro: testReserve,
		},
		WorkerPool: config.WorkerPoolConfig{Size: poolSize},
	}

	p := &pipeline{
		source:   &sliceSource{},
		chain:    newFakeChain(),
		outbox:   &memoryOutbox{},
		audit:    &memoryAudit{entries: map[uint64]*audit.Entry{}},
		dlq:      &nopDLQ{},
		accounts: redisdata.NewAccountRepository(logger, client),
		txRepo:   redisdata.NewTransactionRepository(logger, client),
		channels: redisdata.NewChannelRepository(client),
		mr:       mr,
	}
	p.tracker = tracker.New(logger, p.chain, redisdata.NewPendingRepository(client), 3)

	renderer, err := replies.NewRenderer(cfg.Bot.Name, cfg.Bot.ReserveMicro)
	require.NoError(t, err)

	c := components.CreateDispatchService(components.Dependencies{
		AccountRepo: p.accounts,
		TxRepo:      p.txRepo,
		OutboxRepo:  p.outbox,
		AuditRepo:   p.audit,
		CommandIDs:  redisdata.NewCounterRepository(client),
		Channels:    p.channels,
		Ledger:      p.chain,
		Directory: &fakeDirectory{
			identities: map[string]bool{"alice": true, "bob": true, "carol": true},
			moderators: map[string]string{"carol": "algorand"},
		},
		Tracker: p.tracker,
		Replies: renderer,
	}, logger, cfg)
	if c.Pool != nil {
		t.Cleanup(c.Pool.Shutdown)
	}

	handler := consumer.NewEventHandler(logger, c.Dispatcher, c.Notifier, c.Auditor, p.dlq, renderer)
	p.loop = scheduler.New(logger, scheduler.ConfigFromBot(&cfg.Bot), p.source,
		redisdata.NewMarkerRepository(client), p.channels, handler, p.tracker, c.Engine)
	return p
}

func (p *pipeline) cycle(events ...event.Event) {
	if len(events) > 0 {
		p.source.push(events...)
	}
	p.loop.RunCycle(context.Background())
}

// fundedAccount creates identity's wallet through a wallet query and funds it
func (p *pipeline) fundedAccount(t *testing.T, identity string, micro int64) string {
	t.Helper()
	p.cycle(&event.Message{ID: "wallet-" + identity, Author: identity, Body: "wallet"})
	id, err := p.accounts.GetIDByIdentity(context.Background(), identity)
	require.NoError(t, err)
	acc, err := p.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	p.chain.fund(acc.Wallet.Address, micro)
	return acc.Wallet.Address
}

func (p *pipeline) address(t *testing.T, identity string) string {
	t.Helper()
	id, err := p.accounts.GetIDByIdentity(context.Background(), identity)
	require.NoError(t, err)
	acc, err := p.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Wallet.Address
}

func hasBody(ns []*shared.Notification, substr string) bool {
	for _, n := range ns {
		if strings.Contains(n.Body, substr) {
			return true
		}
	}
	return false
}

func TestPipeline_TipFromAliceToBob(t *testing.T) {
	for _, poolSize := range []int{1, 4} {
		t.Run(fmt.Sprintf("pool size %d", poolSize), func(t *testing.T) {
			p := newPipeline(t, poolSize)
			aliceAddr := p.fundedAccount(t, "alice", 5_000_000)

			p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob thanks"})

			bobAddr := p.address(t, "bob")
			assert.Equal(t, int64(5_000_000-1_000_000-testFee), p.chain.balance(aliceAddr))
			assert.Equal(t, int64(1_000_000), p.chain.balance(bobAddr))
			assert.Equal(t, 1, p.tracker.Len())
			assert.Equal(t, audit.OutcomeExecuted, p.audit.outcome(t, "m-tip"))

			// next cycle drains the tracker and finalizes
			p.cycle()
			assert.Zero(t, p.tracker.Len())

			tips, err := p.txRepo.ListRecent(context.Background(), transaction.KindTip, 10)
			require.NoError(t, err)
			require.Len(t, tips, 1)
			assert.Equal(t, transaction.StateConfirmed, tips[0].State)
			assert.Equal(t, "alice", tips[0].SenderIdentity)
			assert.Equal(t, "bob", tips[0].ReceiverIdentity)
			assert.Equal(t, int64(1_000_000), tips[0].Amount)

			assert.True(t, hasBody(p.outbox.notifications(t, "bob"), "alice tipped you 1"))
			assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "Tipped bob for 1"))
		})
	}
}

func TestPipeline_FinalizeRetriesAfterStoreFailure(t *testing.T) {
	p := newPipeline(t, 1)
	p.fundedAccount(t, "alice", 5_000_000)
	p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"})
	require.Equal(t, 1, p.tracker.Len())

	p.mr.SetError("store unavailable")
	p.cycle()
	p.mr.SetError("")

	assert.Equal(t, 1, p.tracker.Len(), "kept until the record is saved")
	assert.False(t, hasBody(p.outbox.notifications(t, "bob"), "alice tipped you 1"))

	p.cycle()
	assert.Zero(t, p.tracker.Len())
	tips, err := p.txRepo.ListRecent(context.Background(), transaction.KindTip, 10)
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, transaction.StateConfirmed, tips[0].State)

	received := 0
	for _, n := range p.outbox.notifications(t, "bob") {
		if strings.Contains(n.Body, "alice tipped you 1") {
			received++
		}
	}
	assert.Equal(t, 1, received)
}

func TestPipeline_IdempotentReplay(t *testing.T) {
	p := newPipeline(t, 1)
	p.fundedAccount(t, "alice", 5_000_000)

	tip := &event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"}
	p.cycle(tip)
	p.cycle(tip)
	p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"})

	assert.Equal(t, 1, p.chain.submissions())
}

func TestPipeline_WithdrawBelowMinimumUnit(t *testing.T) {
	p := newPipeline(t, 1)
	aliceAddr := p.fundedAccount(t, "alice", 5_000_000)
	callsBefore := p.chain.calls

	p.cycle(&event.Message{ID: "m-wd", Author: "alice", Body: "withdraw 0.0000001 EXTDEST"})

	assert.Zero(t, p.chain.submissions())
	assert.Equal(t, callsBefore, p.chain.calls, "rejected before any ledger call")
	assert.Equal(t, int64(5_000_000), p.chain.balance(aliceAddr))
	assert.Equal(t, audit.OutcomeRejected, p.audit.outcome(t, "m-wd"))
	assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "at least 0.000001"))
}

func TestPipeline_NewAuthor(t *testing.T) {
	t.Run("WithdrawBelowMinimumUnit", func(t *testing.T) {
		p := newPipeline(t, 1)

		p.cycle(&event.Message{ID: "m-wd", Author: "alice", Body: "withdraw 0.0000001 EXTDEST"})

		_, err := p.accounts.GetIDByIdentity(context.Background(), "alice")
		require.NoError(t, err)
		assert.Zero(t, p.chain.submissions())
		assert.Equal(t, audit.OutcomeRejected, p.audit.outcome(t, "m-wd"))
		assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "at least 0.000001"))
	})

	t.Run("TipProvisionsReceiver", func(t *testing.T) {
		p := newPipeline(t, 1)

		p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 5 bob hello"})

		_, err := p.accounts.GetIDByIdentity(context.Background(), "alice")
		require.NoError(t, err)
		_, err = p.accounts.GetIDByIdentity(context.Background(), "bob")
		require.NoError(t, err)
		assert.Zero(t, p.chain.submissions())
		assert.Equal(t, audit.OutcomeRejected, p.audit.outcome(t, "m-tip"))
		assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "Insufficient funds"))
		assert.NotEmpty(t, p.outbox.notifications(t, "bob"))
	})
}

func TestPipeline_WithdrawAllClosesWallet(t *testing.T) {
	p := newPipeline(t, 1)
	aliceAddr := p.fundedAccount(t, "alice", 2_000_000)

	p.cycle(&event.Message{ID: "m-wd", Author: "alice", Body: "withdraw all EXTDEST"})

	assert.Equal(t, int64(2_000_000-testFee), p.chain.balance("EXTDEST"))
	assert.Zero(t, p.chain.balance(aliceAddr))
	require.Equal(t, 1, p.chain.submissions())
	assert.True(t, p.chain.submitted["CHAIN1"].CloseAccount)
}

func TestPipeline_InsufficientFunds(t *testing.T) {
	p := newPipeline(t, 1)
	p.fundedAccount(t, "alice", 1_050_000)

	p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"})

	assert.Zero(t, p.chain.submissions())
	assert.Equal(t, audit.OutcomeRejected, p.audit.outcome(t, "m-tip"))
	assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "Insufficient funds"))
}

func TestPipeline_NonModeratorCannotAddChannel(t *testing.T) {
	p := newPipeline(t, 1)

	p.cycle(&event.Message{ID: "m-admin", Author: "bob", Body: "subreddit add algorand"})

	names, err := p.channels.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, audit.OutcomeRejected, p.audit.outcome(t, "m-admin"))

	p.cycle(&event.Message{ID: "m-admin-2", Author: "carol", Body: "subreddit add algorand"})
	names, err = p.channels.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"algorand"}, names)
}

func TestPipeline_CommentTipInAllowedChannel(t *testing.T) {
	p := newPipeline(t, 1)
	aliceAddr := p.fundedAccount(t, "alice", 5_000_000)
	require.NoError(t, p.channels.Add(context.Background(), "algorand"))

	p.cycle(
		&event.Comment{ID: "c-off", Author: "alice", Body: "!atip 1", ParentAuthor: "bob", Channel: "offtopic"},
		&event.Comment{ID: "c-on", Author: "alice", Body: "!atip 0.5 great post", ParentAuthor: "bob", Channel: "algorand"},
	)

	assert.Equal(t, 1, p.chain.submissions())
	assert.Equal(t, int64(5_000_000-500_000-testFee), p.chain.balance(aliceAddr))

	p.cycle()
	replies := p.outbox.notifications(t, "alice")
	assert.True(t, hasBody(replies, "alice tipped bob 0.5"))
}

func TestPipeline_LedgerOutageIsRetried(t *testing.T) {
	p := newPipeline(t, 1)
	aliceAddr := p.fundedAccount(t, "alice", 5_000_000)

	p.chain.mu.Lock()
	p.chain.down = true
	p.chain.mu.Unlock()
	p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"})
	assert.Zero(t, p.chain.submissions())
	assert.Equal(t, audit.OutcomeRetrying, p.audit.outcome(t, "m-tip"))
	assert.Equal(t, 1, p.loop.Pending())

	p.chain.mu.Lock()
	p.chain.down = false
	p.chain.mu.Unlock()
	p.cycle()

	assert.Equal(t, 1, p.chain.submissions())
	assert.Equal(t, int64(5_000_000-1_000_000-testFee), p.chain.balance(aliceAddr))
	assert.Equal(t, audit.OutcomeExecuted, p.audit.outcome(t, "m-tip"))
	assert.Empty(t, p.dlq.published)
}

func TestPipeline_LedgerOutageAbandonsEventually(t *testing.T) {
	p := newPipeline(t, 1)
	p.fundedAccount(t, "alice", 5_000_000)

	p.chain.mu.Lock()
	p.chain.down = true
	p.chain.mu.Unlock()
	p.cycle(&event.Message{ID: "m-tip", Author: "alice", Body: "tip 1 bob"})
	for i := 0; i < 4; i++ {
		p.cycle()
	}

	assert.Equal(t, []string{"m-tip"}, p.dlq.published)
	assert.Equal(t, audit.OutcomeAbandoned, p.audit.outcome(t, "m-tip"))
	assert.Zero(t, p.loop.Pending())
	assert.True(t, hasBody(p.outbox.notifications(t, "alice"), "Something went wrong"))
}
