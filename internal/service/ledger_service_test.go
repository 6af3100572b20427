package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/internal/core/ports/mocks"
	"splatchain-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testAddrA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testAddrB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	testAddrC = "cccccccccccccccccccccccccccccccccccccccc"
)

// memStore is an in-memory ports.WalletStore.
type memStore struct {
	mu        sync.Mutex
	records   []domain.WalletRecord
	saves     int
	failSaves int // fail this many upcoming saves; -1 fails forever
	loadErr   error
}

func (m *memStore) Load(_ context.Context) ([]domain.WalletRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return slices.Clone(m.records), nil
}

func (m *memStore) Save(_ context.Context, wallets []domain.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSaves != 0 {
		if m.failSaves > 0 {
			m.failSaves--
		}
		return errors.New("disk full")
	}
	m.records = make([]domain.WalletRecord, len(wallets))
	for i := range wallets {
		m.records[i] = wallets[i].ToRecord()
	}
	return nil
}

func (m *memStore) Location() string { return "memory" }

func (m *memStore) set(records ...domain.WalletRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

func (m *memStore) snapshot() []domain.WalletRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func rec(addr, username, owner string, balance string, share bool) domain.WalletRecord {
	return domain.WalletRecord{
		Address:  addr,
		Nickname: "nick-" + username,
		Username: username,
		Type:     "Person",
		Owner:    owner,
		Balance:  balance,
		Share:    share,
	}
}

// defaultRecords: A (500, u1), B (0, u2), C (100, u1, shared).
func defaultRecords() []domain.WalletRecord {
	return []domain.WalletRecord{
		rec(testAddrA, "alpha.ink", "discord/u1", "500", false),
		rec(testAddrB, "bravo.ink", "discord/u2", "0", false),
		rec(testAddrC, "charlie.ink", "discord/u1", "100", true),
	}
}

type ledgerDeps struct {
	svc   *LedgerServiceImpl
	store *memStore
}

func newTestLedger(t *testing.T, notifier ports.NotificationService, records ...domain.WalletRecord) *ledgerDeps {
	t.Helper()
	if len(records) == 0 {
		records = defaultRecords()
	}
	store := &memStore{records: records}
	svc := NewLedgerService(store, notifier, nil, nil,
		LedgerOptions{WriteRetries: 3, WriteRetryDelay: time.Millisecond}, newTestLogger())
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	return &ledgerDeps{svc: svc, store: store}
}

func balanceOf(t *testing.T, svc *LedgerServiceImpl, id string) int64 {
	t.Helper()
	w, err := svc.Lookup(context.Background(), id)
	require.NoError(t, err)
	return w.Balance
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, code), "expected %s, got %v", code, err)
}

// ==================== Create ====================

func TestLedger_Create_AddressValidAndUnique(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	seen := map[string]struct{}{testAddrA: {}, testAddrB: {}, testAddrC: {}}
	for i := 0; i < 50; i++ {
		res, err := d.svc.Create(ctx, ports.CreateWalletRequest{
			Actor:    "discord/u9",
			Username: fmt.Sprintf("w%d.ink", i),
		})
		require.NoError(t, err)

		addr := res.After.Address
		assert.Len(t, addr, domain.AddressLength)
		assert.True(t, domain.ValidAddress(addr))
		_, dup := seen[addr]
		assert.False(t, dup, "address %s reused", addr)
		seen[addr] = struct{}{}
	}

	assert.Equal(t, 53, d.svc.Stats(ctx).Wallets)
	assert.Len(t, d.store.snapshot(), 53)
}

func TestLedger_Create_NormalizesType(t *testing.T) {
	d := newTestLedger(t, nil)

	res, err := d.svc.Create(context.Background(), ports.CreateWalletRequest{
		Actor:          "discord/u3",
		Nickname:       "Shop",
		Username:       "abc.ink",
		Type:           "person",
		InitialBalance: 25,
		Share:          true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.WalletTypePerson, res.After.Type)
	assert.Equal(t, "discord/u3", res.After.Owner)
	assert.Nil(t, res.Before)
	assert.False(t, res.OwnerNotified())

	w, err := d.svc.Lookup(context.Background(), "abc.ink")
	require.NoError(t, err)
	assert.Equal(t, int64(25), w.Balance)
	assert.True(t, w.Share)
}

func TestLedger_Create_DefaultsTypeToPerson(t *testing.T) {
	d := newTestLedger(t, nil)

	res, err := d.svc.Create(context.Background(), ports.CreateWalletRequest{Actor: "discord/u3", Username: "shop.ink", Type: "BUSINESS"})
	require.NoError(t, err)
	assert.Equal(t, domain.WalletTypeBusiness, res.After.Type)

	res, err = d.svc.Create(context.Background(), ports.CreateWalletRequest{Actor: "discord/u3", Username: "me.ink"})
	require.NoError(t, err)
	assert.Equal(t, domain.WalletTypePerson, res.After.Type)
}

func TestLedger_Create_DuplicateUsername(t *testing.T) {
	d := newTestLedger(t, nil)
	savesBefore := d.store.saveCount()

	_, err := d.svc.Create(context.Background(), ports.CreateWalletRequest{Actor: "discord/u3", Username: "alpha.ink"})

	assertCode(t, err, apperror.CodeDuplicate)
	assert.Equal(t, 3, d.svc.Stats(context.Background()).Wallets)
	assert.Equal(t, savesBefore, d.store.saveCount())
}

func TestLedger_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  ports.CreateWalletRequest
		code string
	}{
		{"bad username", ports.CreateWalletRequest{Actor: "discord/u3", Username: "Alpha"}, apperror.CodeValidation},
		{"missing username", ports.CreateWalletRequest{Actor: "discord/u3"}, apperror.CodeValidation},
		{"bad type", ports.CreateWalletRequest{Actor: "discord/u3", Username: "x.ink", Type: "corp"}, apperror.CodeValidation},
		{"bad actor", ports.CreateWalletRequest{Actor: "u3", Username: "x.ink"}, apperror.CodeValidation},
		{"negative balance", ports.CreateWalletRequest{Actor: "discord/u3", Username: "x.ink", InitialBalance: -1}, apperror.CodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestLedger(t, nil)
			_, err := d.svc.Create(context.Background(), tt.req)
			assertCode(t, err, tt.code)
			assert.Equal(t, 3, d.svc.Stats(context.Background()).Wallets)
		})
	}
}

// ==================== Lookup / List / Stats ====================

func TestLedger_Lookup(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	byAddr, err := d.svc.Lookup(ctx, testAddrA)
	require.NoError(t, err)
	byName, err := d.svc.Lookup(ctx, "alpha.ink")
	require.NoError(t, err)
	assert.Equal(t, byAddr, byName)

	_, err = d.svc.Lookup(ctx, "nobody.ink")
	assertCode(t, err, apperror.CodeNotFound)

	_, err = d.svc.Lookup(ctx, "")
	assertCode(t, err, apperror.CodeNotFound)
}

func TestLedger_Lookup_ReturnsCopy(t *testing.T) {
	d := newTestLedger(t, nil)

	w, err := d.svc.Lookup(context.Background(), testAddrA)
	require.NoError(t, err)
	w.Balance = 1_000_000

	assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrA))
}

func TestLedger_ListByOwner(t *testing.T) {
	d := newTestLedger(t, nil)

	wallets, err := d.svc.ListByOwner(context.Background(), "discord/u1")
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, testAddrA, wallets[0].Address)
	assert.Equal(t, testAddrC, wallets[1].Address)

	none, err := d.svc.ListByOwner(context.Background(), "discord/nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = d.svc.ListByOwner(context.Background(), "")
	assertCode(t, err, apperror.CodeValidation)
}

func TestLedger_Stats(t *testing.T) {
	d := newTestLedger(t, nil)
	stats := d.svc.Stats(context.Background())
	assert.Equal(t, ports.LedgerStats{Wallets: 3, TotalSupply: 600}, stats)
}

// ==================== Transfer ====================

func TestLedger_Transfer_ExampleScenario(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	res, err := d.svc.Transfer(ctx, ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Before.Balance)
	assert.Equal(t, int64(0), res.After.Balance)
	assert.Equal(t, int64(0), res.DestBefore.Balance)
	assert.Equal(t, int64(500), res.DestAfter.Balance)
	assert.Equal(t, domain.DecisionAllowedSilent, res.Decision)

	assert.Equal(t, int64(0), balanceOf(t, d.svc, testAddrA))
	assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrB))

	_, err = d.svc.Transfer(ctx, ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 1})
	assertCode(t, err, apperror.CodeInsufficientBalance)
	assert.Equal(t, int64(0), balanceOf(t, d.svc, testAddrA))
	assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrB))
}

func TestLedger_Transfer_Conservation(t *testing.T) {
	for _, amount := range []int64{1, 7, 250, 499, 500} {
		t.Run(fmt.Sprint(amount), func(t *testing.T) {
			d := newTestLedger(t, nil)
			before := balanceOf(t, d.svc, testAddrA) + balanceOf(t, d.svc, testAddrB)

			_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
				Actor: "discord/u1", From: "alpha.ink", To: "bravo.ink", Amount: amount,
			})
			require.NoError(t, err)

			after := balanceOf(t, d.svc, testAddrA) + balanceOf(t, d.svc, testAddrB)
			assert.Equal(t, before, after)
		})
	}
}

func TestLedger_Transfer_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  ports.TransferRequest
		code string
	}{
		{"zero amount", ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 0}, apperror.CodeInvalidAmount},
		{"negative amount", ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: -5}, apperror.CodeInvalidAmount},
		{"unknown source", ports.TransferRequest{Actor: "discord/u1", From: "ghost.ink", To: testAddrB, Amount: 1}, apperror.CodeNotFound},
		{"unknown destination", ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: "ghost.ink", Amount: 1}, apperror.CodeNotFound},
		{"same wallet", ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: "alpha.ink", Amount: 1}, apperror.CodeValidation},
		{"insufficient", ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 501}, apperror.CodeInsufficientBalance},
		{"not owner", ports.TransferRequest{Actor: "discord/u2", From: testAddrA, To: testAddrB, Amount: 1}, apperror.CodeAuthorizationDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestLedger(t, nil)
			_, err := d.svc.Transfer(context.Background(), tt.req)
			assertCode(t, err, tt.code)
			assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrA))
			assert.Equal(t, int64(0), balanceOf(t, d.svc, testAddrB))
		})
	}
}

func TestLedger_Transfer_DestinationOverflow(t *testing.T) {
	d := newTestLedger(t, nil,
		rec(testAddrA, "alpha.ink", "discord/u1", "10", false),
		rec(testAddrB, "bravo.ink", "discord/u2", fmt.Sprint(int64(math.MaxInt64)), false),
	)

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 1})
	assertCode(t, err, apperror.CodeInvalidAmount)
	assert.Equal(t, int64(10), balanceOf(t, d.svc, testAddrA))
}

func TestLedger_Transfer_AuthorizesSourceOnly(t *testing.T) {
	d := newTestLedger(t, nil)

	// u2 owns B; transferring out of B into u1's wallet needs no force.
	_, err := d.svc.Inject(context.Background(), ports.AmountRequest{Actor: "discord/u2", Identifier: testAddrB, Amount: 10})
	require.NoError(t, err)

	res, err := d.svc.Transfer(context.Background(), ports.TransferRequest{Actor: "discord/u2", From: testAddrB, To: testAddrA, Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAllowedSilent, res.Decision)
}

// ==================== Burn / Inject ====================

func TestLedger_Burn(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	res, err := d.svc.Burn(ctx, ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Before.Balance)
	assert.Equal(t, int64(300), res.After.Balance)
	assert.Equal(t, int64(300), balanceOf(t, d.svc, testAddrA))
}

func TestLedger_Burn_MoreThanBalance(t *testing.T) {
	d := newTestLedger(t, nil)

	_, err := d.svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 501})

	assertCode(t, err, apperror.CodeInsufficientBalance)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, int64(500), appErr.Details["balance"])
	assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrA))
}

func TestLedger_Burn_InvalidAmount(t *testing.T) {
	d := newTestLedger(t, nil)
	_, err := d.svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 0})
	assertCode(t, err, apperror.CodeInvalidAmount)
}

func TestLedger_Inject(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	res, err := d.svc.Inject(ctx, ports.AmountRequest{Actor: "discord/u2", Identifier: "bravo.ink", Amount: 75})
	require.NoError(t, err)
	assert.Equal(t, int64(75), res.After.Balance)

	_, err = d.svc.Inject(ctx, ports.AmountRequest{Actor: "discord/u2", Identifier: "bravo.ink", Amount: -1})
	assertCode(t, err, apperror.CodeInvalidAmount)

	_, err = d.svc.Inject(ctx, ports.AmountRequest{Actor: "discord/u2", Identifier: "bravo.ink", Amount: math.MaxInt64})
	assertCode(t, err, apperror.CodeInvalidAmount)
	assert.Equal(t, int64(75), balanceOf(t, d.svc, testAddrB))
}

func TestLedger_Inject_ForcedNeverNotifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockNotificationService(ctrl) // no Notify expected
	d := newTestLedger(t, notifier)

	_, err := d.svc.Inject(context.Background(), ports.AmountRequest{Actor: "discord/u2", Identifier: testAddrA, Amount: 5})
	assertCode(t, err, apperror.CodeAuthorizationDenied)

	res, err := d.svc.Inject(context.Background(), ports.AmountRequest{Actor: "discord/u2", Identifier: testAddrA, Amount: 5, Force: true})
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionAllowedForcedSilent, res.Decision)
	assert.False(t, res.OwnerNotified())
}

// ==================== Authorization matrix ====================

type ledgerOp func(svc *LedgerServiceImpl, actor, target string, force bool) (*ports.MutationResult, error)

var destructiveOps = map[string]ledgerOp{
	"delete": func(svc *LedgerServiceImpl, actor, target string, force bool) (*ports.MutationResult, error) {
		return svc.Delete(context.Background(), ports.DeleteRequest{Actor: actor, Identifier: target, Force: force})
	},
	"transfer": func(svc *LedgerServiceImpl, actor, target string, force bool) (*ports.MutationResult, error) {
		res, err := svc.Transfer(context.Background(), ports.TransferRequest{Actor: actor, From: target, To: testAddrB, Amount: 10, Force: force})
		if err != nil {
			return nil, err
		}
		return &res.MutationResult, nil
	},
	"edit": func(svc *LedgerServiceImpl, actor, target string, force bool) (*ports.MutationResult, error) {
		nick := "renamed"
		return svc.Edit(context.Background(), ports.EditRequest{Actor: actor, Identifier: target, Force: force, Nickname: &nick})
	},
	"burn": func(svc *LedgerServiceImpl, actor, target string, force bool) (*ports.MutationResult, error) {
		return svc.Burn(context.Background(), ports.AmountRequest{Actor: actor, Identifier: target, Amount: 10, Force: force})
	},
}

func TestLedger_NonOwnerWithoutForce_Denied(t *testing.T) {
	for name, op := range destructiveOps {
		t.Run(name, func(t *testing.T) {
			d := newTestLedger(t, nil)
			before := d.store.snapshot()

			_, err := op(d.svc, "discord/u2", testAddrA, false)

			assertCode(t, err, apperror.CodeAuthorizationDenied)
			assert.Equal(t, before, d.store.snapshot())
			assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrA))
		})
	}
}

func TestLedger_NonOwnerWithoutForce_SharedHint(t *testing.T) {
	d := newTestLedger(t, nil)

	_, err := d.svc.Delete(context.Background(), ports.DeleteRequest{Actor: "discord/u2", Identifier: testAddrC})

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeAuthorizationDenied, appErr.Code)
	assert.Equal(t, true, appErr.Details["shared"])
	assert.Contains(t, appErr.Details["hint"], "sharing does NOT mean")
}

func TestLedger_ForcedUnshared_Notifies(t *testing.T) {
	for name, op := range destructiveOps {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			notifier := mocks.NewMockNotificationService(ctrl)
			d := newTestLedger(t, notifier)

			var got *domain.Notification
			notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
				Do(func(_ context.Context, n *domain.Notification) { got = n }).
				Times(1)

			res, err := op(d.svc, "discord/u2", testAddrA, true)
			require.NoError(t, err)
			assert.Equal(t, domain.DecisionAllowedNotify, res.Decision)
			require.True(t, res.OwnerNotified())

			require.NotNil(t, got)
			assert.Same(t, res.Notification, got)
			assert.Equal(t, "discord/u1", got.Owner)
			assert.Equal(t, "discord/u2", got.Actor)
			assert.Equal(t, testAddrA, got.Address)
			assert.Contains(t, got.Message, "alpha.ink")
		})
	}
}

func TestLedger_ForcedShared_Silent(t *testing.T) {
	for name, op := range destructiveOps {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			notifier := mocks.NewMockNotificationService(ctrl) // no Notify expected
			d := newTestLedger(t, notifier)

			res, err := op(d.svc, "discord/u2", testAddrC, true)
			require.NoError(t, err)
			assert.Equal(t, domain.DecisionAllowedForcedSilent, res.Decision)
			assert.False(t, res.OwnerNotified())
		})
	}
}

func TestLedger_ForcedTransfer_NotificationNamesSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mocks.NewMockNotificationService(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(1)
	d := newTestLedger(t, notifier)

	res, err := d.svc.Transfer(context.Background(), ports.TransferRequest{
		Actor: "discord/u2", From: "alpha.ink", To: "charlie.ink", Amount: 20, Force: true,
	})
	require.NoError(t, err)

	n := res.Notification
	require.NotNil(t, n)
	assert.Equal(t, testAddrA, n.Address)
	assert.Equal(t, "discord/u1", n.Owner)
	assert.Equal(t, "discord/u2 transferred 20 SPLC from alpha.ink to charlie.ink.", n.Message)
}

// ==================== Delete ====================

func TestLedger_Delete(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	res, err := d.svc.Delete(ctx, ports.DeleteRequest{Actor: "discord/u1", Identifier: "alpha.ink"})
	require.NoError(t, err)
	assert.Equal(t, testAddrA, res.Before.Address)
	assert.Nil(t, res.After)

	_, err = d.svc.Lookup(ctx, testAddrA)
	assertCode(t, err, apperror.CodeNotFound)
	assert.Len(t, d.store.snapshot(), 2)

	_, err = d.svc.Delete(ctx, ports.DeleteRequest{Actor: "discord/u1", Identifier: "alpha.ink"})
	assertCode(t, err, apperror.CodeNotFound)

	// username is free again
	_, err = d.svc.Create(ctx, ports.CreateWalletRequest{Actor: "discord/u1", Username: "alpha.ink"})
	require.NoError(t, err)
}

// ==================== Edit ====================

func strPtr(s string) *string { return &s }

func TestLedger_Edit_PartialUpdate(t *testing.T) {
	d := newTestLedger(t, nil)
	share := true
	balance := int64(42)

	res, err := d.svc.Edit(context.Background(), ports.EditRequest{
		Actor:      "discord/u1",
		Identifier: testAddrA,
		Nickname:   strPtr("Savings"),
		Type:       strPtr("business"),
		Balance:    &balance,
		Share:      &share,
	})
	require.NoError(t, err)

	assert.Equal(t, "nick-alpha.ink", res.Before.Nickname)
	assert.Equal(t, "Savings", res.After.Nickname)
	assert.Equal(t, domain.WalletTypeBusiness, res.After.Type)
	assert.Equal(t, int64(42), res.After.Balance)
	assert.True(t, res.After.Share)
	assert.Equal(t, "alpha.ink", res.After.Username, "username untouched when not given")
}

func TestLedger_Edit_ShareUntouchedWhenOmitted(t *testing.T) {
	d := newTestLedger(t, nil)

	res, err := d.svc.Edit(context.Background(), ports.EditRequest{Actor: "discord/u1", Identifier: testAddrC, Nickname: strPtr("x")})
	require.NoError(t, err)
	assert.True(t, res.After.Share)
}

func TestLedger_Edit_DuplicateRollsBack(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()
	before := d.store.snapshot()

	_, err := d.svc.Edit(ctx, ports.EditRequest{
		Actor:      "discord/u1",
		Identifier: testAddrA,
		Nickname:   strPtr("changed"),
		Username:   strPtr("bravo.ink"),
	})
	assertCode(t, err, apperror.CodeDuplicate)

	w, err := d.svc.Lookup(ctx, "alpha.ink")
	require.NoError(t, err)
	assert.Equal(t, "nick-alpha.ink", w.Nickname)
	assert.Equal(t, before, d.store.snapshot())
}

func TestLedger_Edit_RenameAndClearUsername(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	_, err := d.svc.Edit(ctx, ports.EditRequest{Actor: "discord/u1", Identifier: "alpha.ink", Username: strPtr("omega.ink")})
	require.NoError(t, err)

	_, err = d.svc.Lookup(ctx, "alpha.ink")
	assertCode(t, err, apperror.CodeNotFound)
	_, err = d.svc.Lookup(ctx, "omega.ink")
	require.NoError(t, err)

	res, err := d.svc.Edit(ctx, ports.EditRequest{Actor: "discord/u1", Identifier: "omega.ink", Username: strPtr("")})
	require.NoError(t, err)
	assert.Empty(t, res.After.Username)
	assert.Equal(t, testAddrA, res.After.Label())
}

func TestLedger_Edit_Validation(t *testing.T) {
	negative := int64(-1)
	tests := []struct {
		name string
		req  ports.EditRequest
		code string
	}{
		{"nothing", ports.EditRequest{Actor: "discord/u1", Identifier: testAddrA}, apperror.CodeValidation},
		{"bad username", ports.EditRequest{Actor: "discord/u1", Identifier: testAddrA, Username: strPtr("NO")}, apperror.CodeValidation},
		{"bad type", ports.EditRequest{Actor: "discord/u1", Identifier: testAddrA, Type: strPtr("robot")}, apperror.CodeValidation},
		{"negative balance", ports.EditRequest{Actor: "discord/u1", Identifier: testAddrA, Balance: &negative}, apperror.CodeInvalidAmount},
		{"unknown wallet", ports.EditRequest{Actor: "discord/u1", Identifier: "ghost.ink", Nickname: strPtr("x")}, apperror.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestLedger(t, nil)
			_, err := d.svc.Edit(context.Background(), tt.req)
			assertCode(t, err, tt.code)
		})
	}
}

func TestLedger_Edit_Claim(t *testing.T) {
	t.Run("claim requires force from non-owner", func(t *testing.T) {
		d := newTestLedger(t, nil)
		_, err := d.svc.Edit(context.Background(), ports.EditRequest{Actor: "discord/u2", Identifier: testAddrA, Claim: true})
		assertCode(t, err, apperror.CodeAuthorizationDenied)
	})

	t.Run("forced claim reassigns owner and notifies previous owner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		notifier := mocks.NewMockNotificationService(ctrl)
		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Times(1)
		d := newTestLedger(t, notifier)

		res, err := d.svc.Edit(context.Background(), ports.EditRequest{Actor: "discord/u2", Identifier: testAddrA, Claim: true, Force: true})
		require.NoError(t, err)
		assert.Equal(t, "discord/u1", res.Before.Owner)
		assert.Equal(t, "discord/u2", res.After.Owner)
		assert.Equal(t, "discord/u1", res.Notification.Owner)
		assert.Contains(t, res.Notification.Message, "claimed ownership")

		// New owner no longer needs force.
		_, err = d.svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u2", Identifier: testAddrA, Amount: 1})
		require.NoError(t, err)
	})

	t.Run("owner claim is a no-op", func(t *testing.T) {
		d := newTestLedger(t, nil)
		res, err := d.svc.Edit(context.Background(), ports.EditRequest{Actor: "discord/u1", Identifier: testAddrA, Claim: true})
		require.NoError(t, err)
		assert.Equal(t, "discord/u1", res.After.Owner)
	})
}

// ==================== Persistence ====================

func TestLedger_WriteFailure_LeavesStateUnchanged(t *testing.T) {
	d := newTestLedger(t, nil)
	d.store.failSaves = -1

	_, err := d.svc.Transfer(context.Background(), ports.TransferRequest{Actor: "discord/u1", From: testAddrA, To: testAddrB, Amount: 100})

	assertCode(t, err, apperror.CodePersistence)
	assert.Equal(t, int64(500), balanceOf(t, d.svc, testAddrA))
	assert.Equal(t, int64(0), balanceOf(t, d.svc, testAddrB))
}

func TestLedger_WriteFailure_RetriesThenSucceeds(t *testing.T) {
	d := newTestLedger(t, nil)
	d.store.failSaves = 2
	savesBefore := d.store.saveCount()

	_, err := d.svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 100})

	require.NoError(t, err)
	assert.Equal(t, savesBefore+3, d.store.saveCount())
	assert.Equal(t, "400", d.store.snapshot()[0].Balance)
}

func TestLedger_WriteFailure_GivesUpAfterRetries(t *testing.T) {
	d := newTestLedger(t, nil)
	d.store.failSaves = 3
	savesBefore := d.store.saveCount()

	_, err := d.svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 100})

	assertCode(t, err, apperror.CodePersistence)
	assert.Equal(t, savesBefore+3, d.store.saveCount())
}

func TestLedger_EveryMutationPersists(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	_, err := d.svc.Create(ctx, ports.CreateWalletRequest{Actor: "discord/u1", Username: "delta.ink", InitialBalance: 5})
	require.NoError(t, err)
	_, err = d.svc.Inject(ctx, ports.AmountRequest{Actor: "discord/u1", Identifier: "delta.ink", Amount: 5})
	require.NoError(t, err)

	var found bool
	for _, r := range d.store.snapshot() {
		if r.Username == "delta.ink" {
			found = true
			assert.Equal(t, "10", r.Balance)
		}
	}
	assert.True(t, found)
}

// ==================== Reload ====================

func TestLedger_Reload_ReplacesEntirely(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	// External edit: B removed, A's balance changed, a new wallet added.
	d.store.set(
		rec(testAddrA, "alpha.ink", "discord/u1", "9", false),
		rec(testAddrC, "charlie.ink", "discord/u1", "100", true),
		rec("dddddddddddddddddddddddddddddddddddddddd", "delta.ink", "discord/u4", "1", false),
	)

	res, err := d.svc.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Wallets)

	assert.Equal(t, int64(9), balanceOf(t, d.svc, testAddrA))
	_, err = d.svc.Lookup(ctx, testAddrB)
	assertCode(t, err, apperror.CodeNotFound)
	_, err = d.svc.Lookup(ctx, "bravo.ink")
	assertCode(t, err, apperror.CodeNotFound)
	_, err = d.svc.Lookup(ctx, "delta.ink")
	require.NoError(t, err)
}

func TestLedger_Reload_DropsLaterDuplicates(t *testing.T) {
	d := newTestLedger(t, nil,
		rec(testAddrA, "alpha.ink", "discord/u1", "1", false),
		rec(testAddrB, "alpha.ink", "discord/u2", "2", false),
		rec(testAddrA, "other.ink", "discord/u3", "3", false),
		rec(testAddrC, "charlie.ink", "discord/u1", "4", false),
	)

	stats := d.svc.Stats(context.Background())
	assert.Equal(t, 2, stats.Wallets)
	assert.Equal(t, int64(5), stats.TotalSupply)

	w, err := d.svc.Lookup(context.Background(), "alpha.ink")
	require.NoError(t, err)
	assert.Equal(t, "discord/u1", w.Owner, "first occurrence wins")

	// The cleaned set was written back.
	assert.Len(t, d.store.snapshot(), 2)
}

func TestLedger_Reload_RepairsAndWritesBack(t *testing.T) {
	store := &memStore{records: []domain.WalletRecord{
		{Address: "short", Username: "Bad Name", Type: "business", Owner: "discord/u1", Balance: "1,234"},
	}}
	svc := NewLedgerService(store, nil, nil, nil, LedgerOptions{}, newTestLogger())

	res, err := svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Repaired)

	persisted := store.snapshot()
	require.Len(t, persisted, 1)
	assert.True(t, domain.ValidAddress(persisted[0].Address))
	assert.Empty(t, persisted[0].Username)
	assert.Equal(t, "Business", persisted[0].Type)
	assert.Equal(t, "1234", persisted[0].Balance)

	// A second reload finds nothing to repair and keeps the same address.
	res, err = svc.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Repaired)
	assert.Equal(t, persisted[0].Address, store.snapshot()[0].Address)
}

func TestLedger_Reload_CleanStoreNotRewritten(t *testing.T) {
	d := newTestLedger(t, nil)
	assert.Equal(t, 0, d.store.saveCount())
}

func TestLedger_Reload_EmptyStoreKeepsCurrent(t *testing.T) {
	d := newTestLedger(t, nil)
	d.store.set()

	_, err := d.svc.Reload(context.Background())

	assertCode(t, err, apperror.CodeEmptyStore)
	assert.Equal(t, 3, d.svc.Stats(context.Background()).Wallets)
}

func TestLedger_Reload_ReadErrorKeepsCurrent(t *testing.T) {
	d := newTestLedger(t, nil)
	d.store.loadErr = errors.New("permission denied")

	_, err := d.svc.Reload(context.Background())

	assertCode(t, err, apperror.CodePersistence)
	assert.Equal(t, 3, d.svc.Stats(context.Background()).Wallets)
}

func TestLedger_InitialReload_EmptyIsFatal(t *testing.T) {
	svc := NewLedgerService(&memStore{}, nil, nil, nil, LedgerOptions{}, newTestLogger())

	_, err := svc.Reload(context.Background())
	assertCode(t, err, apperror.CodeEmptyStore)
	assert.Error(t, svc.Ping(context.Background()))
}

// ==================== Side effects ====================

func TestLedger_AuditAndMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	audit := mocks.NewMockAuditService(ctrl)
	metrics := mocks.NewMockLedgerMetrics(ctrl)
	store := &memStore{records: defaultRecords()}

	metrics.EXPECT().ObserveReload(true, 0, 0)
	metrics.EXPECT().SetStats(gomock.Any()).AnyTimes()

	svc := NewLedgerService(store, nil, audit, metrics, LedgerOptions{}, newTestLogger())
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	var entry *domain.AuditLog
	audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e *domain.AuditLog) { entry = e })
	metrics.EXPECT().ObserveOperation("burn", "ok", gomock.Any())

	_, err = svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u2", Identifier: testAddrA, Amount: 5, Force: true})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.AuditActionBurn, entry.Action)
	assert.True(t, entry.Forced)
	assert.Equal(t, int64(5), entry.Amount)

	metrics.EXPECT().ObserveOperation("burn", apperror.CodeInsufficientBalance, gomock.Any())
	_, err = svc.Burn(context.Background(), ports.AmountRequest{Actor: "discord/u1", Identifier: testAddrA, Amount: 10_000})
	assertCode(t, err, apperror.CodeInsufficientBalance)
}

// ==================== Concurrency ====================

func TestLedger_ConcurrentTransfers_ConserveSupply(t *testing.T) {
	const wallets = 8
	records := make([]domain.WalletRecord, wallets)
	addrs := make([]string, wallets)
	for i := range records {
		addrs[i] = domain.GenerateAddress()
		records[i] = rec(addrs[i], fmt.Sprintf("w%d.ink", i), "discord/u1", "1000", false)
	}
	d := newTestLedger(t, nil, records...)
	ctx := context.Background()
	supply := d.svc.Stats(ctx).TotalSupply

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				from, to := addrs[r.Intn(wallets)], addrs[r.Intn(wallets)]
				_, err := d.svc.Transfer(ctx, ports.TransferRequest{
					Actor: "discord/u1", From: from, To: to, Amount: int64(r.Intn(300) + 1),
				})
				if err != nil && !apperror.HasCode(err, apperror.CodeInsufficientBalance) && !apperror.HasCode(err, apperror.CodeValidation) {
					t.Errorf("unexpected error: %v", err)
				}
				if i%10 == 0 {
					_, _ = d.svc.Lookup(ctx, to)
				}
			}
		}(int64(g))
	}

	// Reconciliation racing with writes must never lose a committed transfer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := d.svc.Reload(ctx); err != nil {
				t.Errorf("reload: %v", err)
			}
		}
	}()

	wg.Wait()

	assert.Equal(t, supply, d.svc.Stats(ctx).TotalSupply)
	for _, a := range addrs {
		assert.GreaterOrEqual(t, balanceOf(t, d.svc, a), int64(0))
	}

	// Memory and durable storage agree.
	var persisted int64
	for _, r := range d.store.snapshot() {
		w, _ := domain.Normalize(r)
		persisted += w.Balance
	}
	assert.Equal(t, supply, persisted)
}

func TestLedger_ConcurrentCreate_UsernameUnique(t *testing.T) {
	d := newTestLedger(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.svc.Create(ctx, ports.CreateWalletRequest{Actor: "discord/u5", Username: "race.ink"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !apperror.HasCode(err, apperror.CodeDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, d.svc.Stats(ctx).Wallets)
}
