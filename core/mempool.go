package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mempool admission errors (spec §4.2/§7). Each is returned verbatim so
// callers can errors.Is against it.
var (
	ErrDuplicateTransaction  = errors.New("mempool: duplicate transaction")
	ErrFeeTooLow             = errors.New("mempool: fee per byte below minimum")
	ErrSenderLimitExceeded   = errors.New("mempool: sender has reached its pending transaction limit")
	ErrMempoolFull           = errors.New("mempool: full and incoming fee density does not exceed the worst entry")
)

// feeKey orders entries by descending fee density, then by earlier
// arrival, then by id, giving the pool's priority index a single total
// order (spec §4.2, §8 P5). invertedFee = MaxUint64-feePerByte so the
// ascending sort below yields highest-fee-first.
type feeKey struct {
	invertedFee uint64
	addedAt     int64
	id          string
}

func feeKeyFor(e *MempoolEntry) feeKey {
	return feeKey{
		invertedFee: ^e.FeePerByte,
		addedAt:     e.AddedAt,
		id:          e.Transaction.ID,
	}
}

// less reports whether a sorts strictly before b (a is higher priority).
func (a feeKey) less(b feeKey) bool {
	if a.invertedFee != b.invertedFee {
		return a.invertedFee < b.invertedFee
	}
	if a.addedAt != b.addedAt {
		return a.addedAt < b.addedAt
	}
	return a.id < b.id
}

// Mempool holds pending transactions ordered by fee density. The primary
// index (by id) is a sync.Map for lock-free concurrent reads/dup-checks;
// the priority index is an RWMutex-guarded sorted slice, serializing
// admission and removal while still allowing concurrent Select reads under
// the read lock (spec §5).
type Mempool struct {
	cfg    MempoolConfig
	log    *logrus.Logger
	byID   sync.Map // string -> *MempoolEntry

	mu           sync.RWMutex
	priority     []*MempoolEntry // sorted ascending by feeKey: best fee first
	senderCounts map[Address]int
}

// NewMempool constructs an empty pool. log may be nil, in which case the
// standard logrus logger is used.
func NewMempool(cfg MempoolConfig, log *logrus.Logger) *Mempool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mempool{
		cfg:          cfg,
		log:          log,
		senderCounts: make(map[Address]int),
	}
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.priority)
}

// Contains reports whether id is currently pending, via the lock-free
// primary index.
func (m *Mempool) Contains(id string) bool {
	_, ok := m.byID.Load(id)
	return ok
}

// feePerByte computes the integer fee density used for ordering: fee
// divided by the transaction's canonical-plus-envelope wire size.
func feePerByte(tx *Transaction) uint64 {
	size := len(CanonicalBytes(tx)) + len(tx.Signature) + len(tx.SenderPublicKey) + len(tx.Proof) + len(tx.AmountCommitment)
	if size == 0 {
		size = 1
	}
	return tx.Fee / uint64(size)
}

// Add admits tx into the pool, applying spec §4.2's checks in order and
// returning the first failure. nowUnix is the current unix-seconds time.
func (m *Mempool) Add(tx Transaction, nowUnix int64) error {
	if m.Contains(tx.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}
	fpb := feePerByte(&tx)
	if fpb < m.cfg.MinFee {
		return fmt.Errorf("%w: got %d, want >= %d", ErrFeeTooLow, fpb, m.cfg.MinFee)
	}

	entry := &MempoolEntry{Transaction: tx, AddedAt: nowUnix, FeePerByte: fpb}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.senderCounts[tx.Sender] >= m.cfg.MaxPerSender {
		return fmt.Errorf("%w: sender=%s limit=%d", ErrSenderLimitExceeded, tx.Sender, m.cfg.MaxPerSender)
	}

	if len(m.priority) >= m.cfg.MaxSize {
		worst := m.priority[len(m.priority)-1]
		if fpb > worst.FeePerByte {
			m.evictLocked(len(m.priority) - 1)
		} else {
			return fmt.Errorf("%w: incoming fee_per_byte=%d", ErrMempoolFull, fpb)
		}
	}

	m.insertLocked(entry)
	m.byID.Store(tx.ID, entry)
	m.senderCounts[tx.Sender]++
	m.log.WithFields(logrus.Fields{"tx": tx.ID, "fee_per_byte": fpb, "pool_size": len(m.priority)}).Debug("mempool: admitted transaction")
	return nil
}

// insertLocked inserts entry into the sorted priority slice. Caller must
// hold mu.
func (m *Mempool) insertLocked(entry *MempoolEntry) {
	key := feeKeyFor(entry)
	idx := sort.Search(len(m.priority), func(i int) bool {
		return !feeKeyFor(m.priority[i]).less(key)
	})
	m.priority = append(m.priority, nil)
	copy(m.priority[idx+1:], m.priority[idx:])
	m.priority[idx] = entry
}

// evictLocked removes the priority-slice entry at idx, decrementing its
// sender's count. Caller must hold mu.
func (m *Mempool) evictLocked(idx int) {
	victim := m.priority[idx]
	m.priority = append(m.priority[:idx], m.priority[idx+1:]...)
	m.byID.Delete(victim.Transaction.ID)
	m.senderCounts[victim.Transaction.Sender]--
	if m.senderCounts[victim.Transaction.Sender] <= 0 {
		delete(m.senderCounts, victim.Transaction.Sender)
	}
}

// Select returns up to maxCount pending transactions in priority order
// without removing them (spec §4.2). An empty pool is not an error.
func (m *Mempool) Select(maxCount int) []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := maxCount
	if n > len(m.priority) {
		n = len(m.priority)
	}
	out := make([]Transaction, n)
	for i := 0; i < n; i++ {
		out[i] = m.priority[i].Transaction
	}
	return out
}

// Remove drops id from the pool if present. Idempotent: a missing id is a
// no-op.
func (m *Mempool) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Mempool) removeLocked(id string) {
	for i, e := range m.priority {
		if e.Transaction.ID == id {
			m.evictLocked(i)
			return
		}
	}
}

// RemoveBatch drops every id in ids, each a no-op if already absent.
func (m *Mempool) RemoveBatch(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.removeLocked(id)
	}
}

// ExpireOld removes entries whose AddedAt predates nowUnix-ExpirySeconds,
// returning the count removed. Supplemented from original_source's
// mempool.rs; the teacher's mempool sketches have no expiry path.
func (m *Mempool) ExpireOld(nowUnix int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := nowUnix - m.cfg.ExpirySeconds
	removed := 0
	for i := 0; i < len(m.priority); {
		if m.priority[i].AddedAt < cutoff {
			m.evictLocked(i)
			removed++
			continue
		}
		i++
	}
	if removed > 0 {
		m.log.WithField("removed", removed).Debug("mempool: expired stale transactions")
	}
	return removed
}

// MinFeePerByte returns the fee density of the worst (lowest-priority)
// pending entry, or ok=false when the pool is empty.
func (m *Mempool) MinFeePerByte() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.priority) == 0 {
		return 0, false
	}
	return m.priority[len(m.priority)-1].FeePerByte, true
}
