package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerOptions tunes persistence of the ledger.
type LedgerOptions struct {
	WriteRetries    int
	WriteRetryDelay time.Duration
}

// LedgerServiceImpl implements ports.LedgerService.
//
// Committed wallets are never modified in place: a mutation builds the next
// wallet set from clones, persists it, and only then swaps it in. All of this
// happens under the write lock, so a reload can never discard an unflushed
// write and readers never see a wallet mid-mutation.
type LedgerServiceImpl struct {
	mu      sync.RWMutex
	wallets []*domain.Wallet
	index   *walletIndex

	store    ports.WalletStore
	notifier ports.NotificationService
	audit    ports.AuditService
	metrics  ports.LedgerMetrics
	opts     LedgerOptions
	log      zerolog.Logger
}

// NewLedgerService creates an empty ledger backed by store. Call Reload before
// serving operations. notifier, audit and metrics may be nil.
func NewLedgerService(
	store ports.WalletStore,
	notifier ports.NotificationService,
	audit ports.AuditService,
	metrics ports.LedgerMetrics,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if notifier == nil {
		notifier = noopNotifications{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if opts.WriteRetries < 1 {
		opts.WriteRetries = 1
	}
	return &LedgerServiceImpl{
		index:    newWalletIndex(nil),
		store:    store,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
		opts:     opts,
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// Create adds a wallet owned by the actor under a freshly generated address.
func (s *LedgerServiceImpl) Create(ctx context.Context, req ports.CreateWalletRequest) (res *ports.MutationResult, err error) {
	defer s.observe("create", time.Now(), &err)

	if !domain.ValidIdentity(req.Actor) {
		return nil, apperror.Validation("actor must have the form <platform>/<handle>")
	}
	if !domain.ValidUsername(req.Username) {
		return nil, apperror.Validation("usernames must end in " + domain.UsernameSuffix + " and contain only lowercase letters, numbers, and periods")
	}
	typ, ok := domain.ParseWalletType(req.Type)
	if !ok && req.Type != "" {
		return nil, apperror.Validation("type must be Person or Business")
	}
	if req.InitialBalance < 0 {
		return nil, apperror.ErrInvalidAmount("initial balance cannot be negative")
	}

	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		w := &domain.Wallet{
			Nickname: req.Nickname,
			Username: req.Username,
			Type:     typ,
			Owner:    req.Actor,
			Balance:  req.InitialBalance,
			Share:    req.Share,
		}
		if field := s.index.duplicateField(w, ""); field != "" {
			return nil, apperror.ErrDuplicate(field)
		}
		w.Address = s.uniqueAddressLocked()
		w = s.revalidate(w)

		res = &ports.MutationResult{After: w.Clone(), Decision: domain.DecisionAllowedSilent}
		return append(slices.Clone(s.wallets), w), nil
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditLog(req.Actor, domain.AuditActionCreate, res.After.Address)
	entry.Amount = req.InitialBalance
	s.finish(ctx, res, entry)
	return res, nil
}

// Lookup resolves identifier as an address or a username.
func (s *LedgerServiceImpl) Lookup(_ context.Context, identifier string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := s.index.find(identifier)
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w.Clone(), nil
}

// ListByOwner returns every wallet owned by owner, in store order.
func (s *LedgerServiceImpl) ListByOwner(_ context.Context, owner string) ([]domain.Wallet, error) {
	if owner == "" {
		return nil, apperror.Validation("owner is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Wallet, 0)
	for _, w := range s.wallets {
		if w.IsOwnedBy(owner) {
			out = append(out, *w)
		}
	}
	return out, nil
}

// Delete removes a wallet.
func (s *LedgerServiceImpl) Delete(ctx context.Context, req ports.DeleteRequest) (res *ports.MutationResult, err error) {
	defer s.observe("delete", time.Now(), &err)

	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		w := s.index.find(req.Identifier)
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		auth, err := authorize(req.Actor, w, domain.ActionDelete, req.Force)
		if err != nil {
			return nil, err
		}

		res = &ports.MutationResult{Before: w.Clone(), Decision: auth.Decision}
		if auth.Decision == domain.DecisionAllowedNotify {
			res.Notification = domain.NewNotification(req.Actor, w, domain.ActionDelete, domain.DescribeDelete(req.Actor, w))
		}
		return slices.DeleteFunc(slices.Clone(s.wallets), func(c *domain.Wallet) bool { return c == w }), nil
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditLog(req.Actor, domain.AuditActionDelete, res.Before.Address)
	entry.Forced = res.Decision.Forced()
	s.finish(ctx, res, entry)
	return res, nil
}

// Transfer moves an amount between two wallets. Only the source wallet is
// subject to authorization.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (res *ports.TransferResult, err error) {
	defer s.observe("transfer", time.Now(), &err)

	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount("amount must be greater than zero")
	}

	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		from := s.index.find(req.From)
		if from == nil {
			return nil, apperror.ErrNotFound("source wallet")
		}
		to := s.index.find(req.To)
		if to == nil {
			return nil, apperror.ErrNotFound("destination wallet")
		}
		if from == to {
			return nil, apperror.Validation("cannot transfer to the same wallet")
		}

		auth, err := authorize(req.Actor, from, domain.ActionTransfer, req.Force)
		if err != nil {
			return nil, err
		}
		if from.Balance < req.Amount {
			return nil, apperror.ErrInsufficientBalance(from.Balance, req.Amount)
		}
		if to.Balance > math.MaxInt64-req.Amount {
			return nil, apperror.ErrInvalidAmount("transfer would overflow the destination balance")
		}

		newFrom := from.Clone()
		newFrom.Balance -= req.Amount
		newFrom = s.revalidate(newFrom)
		newTo := to.Clone()
		newTo.Balance += req.Amount
		newTo = s.revalidate(newTo)

		res = &ports.TransferResult{
			MutationResult: ports.MutationResult{
				Before:   from.Clone(),
				After:    newFrom.Clone(),
				Decision: auth.Decision,
			},
			DestBefore: to.Clone(),
			DestAfter:  newTo.Clone(),
		}
		if auth.Decision == domain.DecisionAllowedNotify {
			res.Notification = domain.NewNotification(req.Actor, from, domain.ActionTransfer,
				domain.DescribeTransfer(req.Actor, from, to, req.Amount))
		}
		return replaceWallets(s.wallets, map[*domain.Wallet]*domain.Wallet{from: newFrom, to: newTo}), nil
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditLog(req.Actor, domain.AuditActionTransfer, res.Before.Address)
	entry.Forced = res.Decision.Forced()
	entry.Amount = req.Amount
	entry.Details = auditDetails(map[string]any{"to": res.DestAfter.Address})
	s.finish(ctx, &res.MutationResult, entry)
	return res, nil
}

// Edit applies a partial update and, with Claim, reassigns the owner to the
// actor. The authorization check is made against the pre-claim owner. A
// username collision after the update leaves the wallet untouched.
func (s *LedgerServiceImpl) Edit(ctx context.Context, req ports.EditRequest) (res *ports.MutationResult, err error) {
	defer s.observe("edit", time.Now(), &err)

	if req.Empty() {
		return nil, apperror.Validation("nothing to edit")
	}
	if req.Username != nil && *req.Username != "" && !domain.ValidUsername(*req.Username) {
		return nil, apperror.Validation("usernames must end in " + domain.UsernameSuffix + " and contain only lowercase letters, numbers, and periods")
	}
	var typ domain.WalletType
	if req.Type != nil {
		var ok bool
		if typ, ok = domain.ParseWalletType(*req.Type); !ok {
			return nil, apperror.Validation("type must be Person or Business")
		}
	}
	if req.Balance != nil && *req.Balance < 0 {
		return nil, apperror.ErrInvalidAmount("balance cannot be negative")
	}
	if req.Claim && !domain.ValidIdentity(req.Actor) {
		return nil, apperror.Validation("actor must have the form <platform>/<handle>")
	}

	var claimed bool
	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		w := s.index.find(req.Identifier)
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		auth, err := authorize(req.Actor, w, domain.ActionEdit, req.Force)
		if err != nil {
			return nil, err
		}

		updated := w.Clone()
		if req.Nickname != nil {
			updated.Nickname = *req.Nickname
		}
		if req.Username != nil {
			updated.Username = *req.Username
		}
		if req.Type != nil {
			updated.Type = typ
		}
		if req.Balance != nil {
			updated.Balance = *req.Balance
		}
		if req.Share != nil {
			updated.Share = *req.Share
		}
		if req.Claim {
			claimed = !w.IsOwnedBy(req.Actor)
			updated.Owner = req.Actor
		}
		updated = s.revalidate(updated)

		if field := s.index.duplicateField(updated, w.Address); field != "" {
			return nil, apperror.ErrDuplicate(field)
		}

		res = &ports.MutationResult{Before: w.Clone(), After: updated.Clone(), Decision: auth.Decision}
		if auth.Decision == domain.DecisionAllowedNotify {
			res.Notification = domain.NewNotification(req.Actor, w, domain.ActionEdit, domain.DescribeEdit(req.Actor, w, claimed))
		}
		return replaceWallets(s.wallets, map[*domain.Wallet]*domain.Wallet{w: updated}), nil
	})
	if err != nil {
		return nil, err
	}

	action := domain.AuditActionEdit
	if claimed {
		action = domain.AuditActionClaim
	}
	entry := domain.NewAuditLog(req.Actor, action, res.After.Address)
	entry.Forced = res.Decision.Forced()
	entry.Details = auditDetails(map[string]any{"before": res.Before, "after": res.After})
	s.finish(ctx, res, entry)
	return res, nil
}

// Inject credits a wallet. Forcing it never notifies the owner.
func (s *LedgerServiceImpl) Inject(ctx context.Context, req ports.AmountRequest) (res *ports.MutationResult, err error) {
	defer s.observe("inject", time.Now(), &err)

	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount("amount must be greater than zero")
	}

	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		w := s.index.find(req.Identifier)
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		auth, err := authorize(req.Actor, w, domain.ActionInject, req.Force)
		if err != nil {
			return nil, err
		}
		if w.Balance > math.MaxInt64-req.Amount {
			return nil, apperror.ErrInvalidAmount("injection would overflow the wallet balance")
		}

		updated := w.Clone()
		updated.Balance += req.Amount
		updated = s.revalidate(updated)

		res = &ports.MutationResult{Before: w.Clone(), After: updated.Clone(), Decision: auth.Decision}
		return replaceWallets(s.wallets, map[*domain.Wallet]*domain.Wallet{w: updated}), nil
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditLog(req.Actor, domain.AuditActionInject, res.After.Address)
	entry.Forced = res.Decision.Forced()
	entry.Amount = req.Amount
	s.finish(ctx, res, entry)
	return res, nil
}

// Burn removes an amount from a wallet. The balance is unchanged on failure.
func (s *LedgerServiceImpl) Burn(ctx context.Context, req ports.AmountRequest) (res *ports.MutationResult, err error) {
	defer s.observe("burn", time.Now(), &err)

	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount("amount must be greater than zero")
	}

	err = s.mutate(ctx, func() ([]*domain.Wallet, error) {
		w := s.index.find(req.Identifier)
		if w == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		auth, err := authorize(req.Actor, w, domain.ActionBurn, req.Force)
		if err != nil {
			return nil, err
		}
		if w.Balance < req.Amount {
			return nil, apperror.ErrInsufficientBalance(w.Balance, req.Amount)
		}

		updated := w.Clone()
		updated.Balance -= req.Amount
		updated = s.revalidate(updated)

		res = &ports.MutationResult{Before: w.Clone(), After: updated.Clone(), Decision: auth.Decision}
		if auth.Decision == domain.DecisionAllowedNotify {
			res.Notification = domain.NewNotification(req.Actor, w, domain.ActionBurn, domain.DescribeBurn(req.Actor, w, req.Amount))
		}
		return replaceWallets(s.wallets, map[*domain.Wallet]*domain.Wallet{w: updated}), nil
	})
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditLog(req.Actor, domain.AuditActionBurn, res.After.Address)
	entry.Forced = res.Decision.Forced()
	entry.Amount = req.Amount
	s.finish(ctx, res, entry)
	return res, nil
}

// Reload replaces the in-memory wallets with a freshly decoded, normalized and
// de-duplicated copy of durable storage. On a read failure or an empty store
// the current wallets are kept and the error is returned. When the pass had to
// repair or drop records the cleaned set is written back, so regenerated
// addresses stay stable across reloads.
func (s *LedgerServiceImpl) Reload(ctx context.Context) (*ports.ReloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.Load(ctx)
	if err != nil {
		s.metrics.ObserveReload(false, 0, 0)
		return nil, asPersistence(err)
	}
	if len(records) == 0 {
		s.metrics.ObserveReload(false, 0, 0)
		return nil, apperror.ErrEmptyStore(s.store.Location())
	}

	result := &ports.ReloadResult{Loaded: len(records)}
	wallets := make([]*domain.Wallet, 0, len(records))
	idx := newWalletIndex(nil)

	for i, rec := range records {
		w, repairs := domain.Normalize(rec)
		if len(repairs) > 0 {
			result.Repaired++
			s.logRepairs(i, &w, repairs)
		}

		if field := idx.duplicateField(&w, ""); field != "" {
			result.Dropped++
			s.log.Warn().
				Int("row", i+1).
				Str("address", w.Address).
				Str("username", w.Username).
				Str("field", field).
				Msg("duplicate wallet removed; first occurrence kept")
			continue
		}

		idx.add(&w)
		wallets = append(wallets, &w)
	}

	s.wallets = wallets
	s.index = idx
	result.Wallets = len(wallets)

	if result.Repaired > 0 || result.Dropped > 0 {
		if err := s.persistLocked(ctx, wallets); err != nil {
			s.log.Error().Err(err).Msg("failed to write back normalized ledger")
		}
	}

	s.metrics.ObserveReload(true, result.Dropped, result.Repaired)
	s.metrics.SetStats(s.statsLocked())

	s.log.Info().
		Int("loaded", result.Loaded).
		Int("wallets", result.Wallets).
		Int("dropped", result.Dropped).
		Int("repaired", result.Repaired).
		Msg("ledger reloaded")

	return result, nil
}

// Stats returns the wallet count and total supply.
func (s *LedgerServiceImpl) Stats(_ context.Context) ports.LedgerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

// Ping implements ports.HealthChecker. An empty ledger is unhealthy.
func (s *LedgerServiceImpl) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.wallets) == 0 {
		return apperror.ErrEmptyStore(s.store.Location())
	}
	return nil
}

// Name implements ports.HealthChecker.
func (s *LedgerServiceImpl) Name() string {
	return "ledger"
}

// mutate runs fn under the write lock. fn returns the next wallet set, which
// is persisted and swapped in before the lock is released. If fn or the
// write fails the current set is left as it was.
func (s *LedgerServiceImpl) mutate(ctx context.Context, fn func() ([]*domain.Wallet, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn()
	if err != nil {
		return err
	}
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.wallets = next
	s.index = newWalletIndex(next)
	return nil
}

// persistLocked writes wallets with a bounded retry policy.
func (s *LedgerServiceImpl) persistLocked(ctx context.Context, wallets []*domain.Wallet) error {
	values := make([]domain.Wallet, len(wallets))
	for i, w := range wallets {
		values[i] = *w
	}

	var err error
	for attempt := 1; attempt <= s.opts.WriteRetries; attempt++ {
		if err = s.store.Save(ctx, values); err == nil {
			return nil
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Str("location", s.store.Location()).Msg("ledger write failed")

		if attempt == s.opts.WriteRetries {
			break
		}
		select {
		case <-ctx.Done():
			return apperror.ErrPersistence(fmt.Errorf("waiting to retry write: %w", ctx.Err()))
		case <-time.After(s.opts.WriteRetryDelay):
		}
	}
	return asPersistence(err)
}

func (s *LedgerServiceImpl) uniqueAddressLocked() string {
	for {
		addr := domain.GenerateAddress()
		if !s.index.hasAddress(addr) {
			return addr
		}
	}
}

// revalidate runs the normalizer over a wallet about to be committed.
// Operation inputs are validated strictly beforehand, so a repair here means
// a bug upstream; it is logged and applied.
func (s *LedgerServiceImpl) revalidate(w *domain.Wallet) *domain.Wallet {
	normalized, repairs := domain.NormalizeWallet(*w)
	if len(repairs) > 0 {
		s.logRepairs(-1, &normalized, repairs)
	}
	return &normalized
}

func (s *LedgerServiceImpl) logRepairs(row int, w *domain.Wallet, repairs []domain.Repair) {
	for _, r := range repairs {
		event := s.log.Warn()
		if r.Destructive {
			event = s.log.Error()
		}
		if row >= 0 {
			event = event.Int("row", row+1)
		}
		event.
			Str("address", w.Address).
			Str("field", r.Field).
			Str("from", r.From).
			Str("to", r.To).
			Bool("destructive", r.Destructive).
			Msg(r.Reason)
	}
}

func (s *LedgerServiceImpl) statsLocked() ports.LedgerStats {
	stats := ports.LedgerStats{Wallets: len(s.wallets)}
	for _, w := range s.wallets {
		stats.TotalSupply += w.Balance
	}
	return stats
}

// finish runs the side effects of a committed mutation. None of them can fail
// the operation.
func (s *LedgerServiceImpl) finish(ctx context.Context, res *ports.MutationResult, entry *domain.AuditLog) {
	if res.Notification != nil {
		s.notifier.Notify(ctx, res.Notification)
	}
	s.audit.Log(ctx, entry)
	s.metrics.SetStats(s.Stats(ctx))
}

func (s *LedgerServiceImpl) observe(op string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(op, errorCode(*errp), time.Since(start))
}

// authorize converts a denial into an AuthorizationDenied error.
func authorize(actor string, w *domain.Wallet, action domain.Action, force bool) (domain.Authorization, error) {
	auth := domain.Authorize(actor, w, action, force)
	if !auth.Decision.Allowed() {
		return auth, apperror.ErrAuthorizationDenied(auth.Hint, auth.Shared)
	}
	return auth, nil
}

func replaceWallets(wallets []*domain.Wallet, replacements map[*domain.Wallet]*domain.Wallet) []*domain.Wallet {
	next := make([]*domain.Wallet, len(wallets))
	for i, w := range wallets {
		if r, ok := replacements[w]; ok {
			next[i] = r
		} else {
			next[i] = w
		}
	}
	return next
}

func asPersistence(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.ErrPersistence(err)
}

func errorCode(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperror.CodeInternal
}

type noopNotifications struct{}

func (noopNotifications) Notify(context.Context, *domain.Notification) {}

type noopAudit struct{}

func (noopAudit) Log(context.Context, *domain.AuditLog) {}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) ObserveReload(bool, int, int)                   {}
func (noopMetrics) SetStats(ports.LedgerStats)                     {}
func (noopMetrics) ObserveNotification(string)                     {}
