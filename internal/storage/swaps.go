// Package storage - swap record persistence.
// Every status transition carries the expected current status in its WHERE
// clause, so a duplicate or stale update affects zero rows instead of
// corrupting the state machine.
package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Swap persistence errors
var (
	ErrSwapNotFound = errors.New("swap not found")

	// ErrStateConflict means a status-gated update matched no row: the swap
	// is missing or another worker already advanced it. Callers treat it
	// as a benign no-op.
	ErrStateConflict = errors.New("swap state conflict")
)

// SwapStatus represents the current state of a swap.
type SwapStatus string

const (
	StatusPendingDeposit SwapStatus = "pending_deposit"
	StatusExecuting      SwapStatus = "executing"
	StatusComplete       SwapStatus = "complete"
	StatusFailed         SwapStatus = "failed"
	StatusExpired        SwapStatus = "expired"
	StatusRefundPending  SwapStatus = "refund_pending"
	StatusRefunded       SwapStatus = "refunded"
)

// Terminal reports whether no further transition can leave the status.
func (s SwapStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// SwapRecord represents a persisted swap.
type SwapRecord struct {
	// Identity
	ID      string `json:"id"`
	ChainID uint64 `json:"chain_id"`

	// Deposit vault (salt is hex; the key is re-derived on demand)
	VaultAddress string `json:"vault_address"`
	VaultSalt    string `json:"-"`

	// Trade definition
	SellToken        string `json:"sell_token"`
	BuyToken         string `json:"buy_token"`
	RecipientAddress string `json:"recipient_address"`
	RefundAddress    string `json:"refund_address"`

	// State
	Status SwapStatus `json:"status"`

	// Deposit info (amounts are decimal strings in token base units)
	DepositTxHash    string `json:"deposit_tx_hash,omitempty"`
	DepositAmount    string `json:"deposit_amount,omitempty"`
	DepositorAddress string `json:"depositor_address,omitempty"`

	// Order info
	OrderUID    string `json:"order_uid,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`

	// Settlement info
	SettlementTxHash string `json:"settlement_tx_hash,omitempty"`
	ActualBuyAmount  string `json:"actual_buy_amount,omitempty"`

	// Refund info
	RefundTxHash string `json:"refund_tx_hash,omitempty"`
	RefundAmount string `json:"refund_amount,omitempty"`

	// Failure tracking
	FailureReason string `json:"failure_reason,omitempty"`

	// Timing
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

const swapColumns = `id, chain_id, vault_address, vault_salt,
		sell_token, buy_token, recipient_address, refund_address,
		status, deposit_tx_hash, deposit_amount, depositor_address,
		cow_order_uid, order_status, settlement_tx_hash, actual_buy_amount,
		refund_tx_hash, refund_amount, failure_reason,
		created_at, updated_at, expires_at`

// CreateSwap inserts a new swap row in status pending_deposit.
func (s *Storage) CreateSwap(swap *SwapRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = now
	}
	swap.UpdatedAt = now
	if swap.Status == "" {
		swap.Status = StatusPendingDeposit
	}

	query := `
		INSERT INTO swaps (
			id, chain_id, vault_address, vault_salt,
			sell_token, buy_token, recipient_address, refund_address,
			status, created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		swap.ID,
		swap.ChainID,
		swap.VaultAddress,
		swap.VaultSalt,
		swap.SellToken,
		swap.BuyToken,
		swap.RecipientAddress,
		swap.RefundAddress,
		string(swap.Status),
		swap.CreatedAt.Unix(),
		swap.UpdatedAt.Unix(),
		swap.ExpiresAt.Unix(),
	)
	return err
}

// GetSwap retrieves a swap by ID.
func (s *Storage) GetSwap(id string) (*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+swapColumns+` FROM swaps WHERE id = ?`, id)
	return scanSwap(row)
}

// GetSwapByVault retrieves a swap by its vault address.
func (s *Storage) GetSwapByVault(vaultAddress string) (*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+swapColumns+` FROM swaps WHERE vault_address = ?`, vaultAddress)
	return scanSwap(row)
}

// GetPendingSwapsByChain returns pending_deposit swaps on one chain that
// have not yet expired, oldest first.
func (s *Storage) GetPendingSwapsByChain(chainID uint64) ([]*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + swapColumns + `
		FROM swaps
		WHERE chain_id = ? AND status = ? AND expires_at > ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.Query(query, chainID, string(StatusPendingDeposit), time.Now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSwaps(rows)
}

// GetExecutingSwaps returns all executing swaps across chains, oldest first.
func (s *Storage) GetExecutingSwaps() ([]*SwapRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + swapColumns + `
		FROM swaps
		WHERE status = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.Query(query, string(StatusExecuting))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSwaps(rows)
}

// RecordDeposit stores the detected deposit details. The depositor address
// and tx hash may be empty; balance polling does not attribute the sender.
func (s *Storage) RecordDeposit(id, txHash, depositor, amount string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET deposit_tx_hash = ?, depositor_address = ?, deposit_amount = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, txHash, depositor, amount, time.Now().Unix(), id, string(StatusPendingDeposit))
}

// MarkExecuting transitions pending_deposit -> executing. Returns
// ErrStateConflict when another worker won the race.
func (s *Storage) MarkExecuting(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, string(StatusExecuting), time.Now().Unix(), id, string(StatusPendingDeposit))
}

// SaveOrderUID records the orderbook-assigned UID on an executing swap and
// marks the order sub-status OPEN.
func (s *Storage) SaveOrderUID(id, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET cow_order_uid = ?, order_status = 'OPEN', updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, uid, time.Now().Unix(), id, string(StatusExecuting))
}

// UpdateOrderStatus persists a new order sub-status for an executing swap
// and applies the terminal mapping: FULFILLED completes the swap with its
// settlement details, EXPIRED and CANCELLED park it in refund_pending.
func (s *Storage) UpdateOrderStatus(id, orderStatus, settlementTxHash, actualBuyAmount string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	switch orderStatus {
	case "FULFILLED":
		query := `
			UPDATE swaps
			SET status = ?, order_status = ?, settlement_tx_hash = ?, actual_buy_amount = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`
		return s.execGuarded(query, string(StatusComplete), orderStatus, settlementTxHash, actualBuyAmount, now, id, string(StatusExecuting))
	case "EXPIRED":
		query := `
			UPDATE swaps
			SET status = ?, order_status = ?, failure_reason = 'order expired without fill', updated_at = ?
			WHERE id = ? AND status = ?
		`
		return s.execGuarded(query, string(StatusRefundPending), orderStatus, now, id, string(StatusExecuting))
	case "CANCELLED":
		query := `
			UPDATE swaps
			SET status = ?, order_status = ?, failure_reason = 'order cancelled', updated_at = ?
			WHERE id = ? AND status = ?
		`
		return s.execGuarded(query, string(StatusRefundPending), orderStatus, now, id, string(StatusExecuting))
	default:
		query := `
			UPDATE swaps
			SET order_status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`
		return s.execGuarded(query, orderStatus, now, id, string(StatusExecuting))
	}
}

// MarkFailed transitions executing -> failed with a diagnostic reason.
// Funds stay in the vault awaiting operator recovery.
func (s *Storage) MarkFailed(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET status = ?, failure_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, string(StatusFailed), reason, time.Now().Unix(), id, string(StatusExecuting))
}

// MarkNeedsRefund transitions executing -> refund_pending.
func (s *Storage) MarkNeedsRefund(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET status = ?, failure_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, string(StatusRefundPending), reason, time.Now().Unix(), id, string(StatusExecuting))
}

// MarkRefunded records an out-of-band refund: refund_pending -> refunded.
func (s *Storage) MarkRefunded(id, txHash, amount string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET status = ?, refund_tx_hash = ?, refund_amount = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.execGuarded(query, string(StatusRefunded), txHash, amount, time.Now().Unix(), id, string(StatusRefundPending))
}

// ExpireOverdue bulk-moves stale pending_deposit swaps to expired and
// returns how many rows changed.
func (s *Storage) ExpireOverdue() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	query := `
		UPDATE swaps
		SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at < ?
	`

	result, err := s.db.Exec(query, string(StatusExpired), now, string(StatusPendingDeposit), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FailStuckExecuting sweeps executing swaps that never got an order UID and
// have not been touched since the cutoff. Such rows mean order submission
// died between MarkExecuting and SaveOrderUID; without a UID the settlement
// sweep can never advance them.
func (s *Storage) FailStuckExecuting(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE swaps
		SET status = ?, failure_reason = 'order submission never completed', updated_at = ?
		WHERE status = ? AND (cow_order_uid IS NULL OR cow_order_uid = '') AND updated_at < ?
	`

	result, err := s.db.Exec(query, string(StatusFailed), time.Now().Unix(), string(StatusExecuting), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// StatusCount is one cell of the status/chain gauge matrix.
type StatusCount struct {
	ChainID uint64
	Status  SwapStatus
	Count   int64
}

// CountSwapsByStatusAndChain returns swap counts grouped by chain and status.
func (s *Storage) CountSwapsByStatusAndChain() ([]StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT chain_id, status, COUNT(*) FROM swaps GROUP BY chain_id, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		var status string
		if err := rows.Scan(&c.ChainID, &status, &c.Count); err != nil {
			return nil, err
		}
		c.Status = SwapStatus(status)
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// execGuarded runs a status-gated UPDATE and maps zero affected rows to
// ErrStateConflict.
func (s *Storage) execGuarded(query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStateConflict
	}

	return nil
}

// rowScanner lets scanSwapFields serve both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSwap(row *sql.Row) (*SwapRecord, error) {
	swap, err := scanSwapFields(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSwapNotFound
		}
		return nil, err
	}
	return swap, nil
}

func collectSwaps(rows *sql.Rows) ([]*SwapRecord, error) {
	var swaps []*SwapRecord
	for rows.Next() {
		swap, err := scanSwapFields(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	return swaps, rows.Err()
}

func scanSwapFields(row rowScanner) (*SwapRecord, error) {
	var swap SwapRecord
	var depositTxHash, depositAmount, depositorAddress sql.NullString
	var orderUID, orderStatus, settlementTxHash, actualBuyAmount sql.NullString
	var refundTxHash, refundAmount, failureReason sql.NullString
	var createdAt, updatedAt, expiresAt int64

	err := row.Scan(
		&swap.ID,
		&swap.ChainID,
		&swap.VaultAddress,
		&swap.VaultSalt,
		&swap.SellToken,
		&swap.BuyToken,
		&swap.RecipientAddress,
		&swap.RefundAddress,
		&swap.Status,
		&depositTxHash,
		&depositAmount,
		&depositorAddress,
		&orderUID,
		&orderStatus,
		&settlementTxHash,
		&actualBuyAmount,
		&refundTxHash,
		&refundAmount,
		&failureReason,
		&createdAt,
		&updatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if depositTxHash.Valid {
		swap.DepositTxHash = depositTxHash.String
	}
	if depositAmount.Valid {
		swap.DepositAmount = depositAmount.String
	}
	if depositorAddress.Valid {
		swap.DepositorAddress = depositorAddress.String
	}
	if orderUID.Valid {
		swap.OrderUID = orderUID.String
	}
	if orderStatus.Valid {
		swap.OrderStatus = orderStatus.String
	}
	if settlementTxHash.Valid {
		swap.SettlementTxHash = settlementTxHash.String
	}
	if actualBuyAmount.Valid {
		swap.ActualBuyAmount = actualBuyAmount.String
	}
	if refundTxHash.Valid {
		swap.RefundTxHash = refundTxHash.String
	}
	if refundAmount.Valid {
		swap.RefundAmount = refundAmount.String
	}
	if failureReason.Valid {
		swap.FailureReason = failureReason.String
	}

	swap.CreatedAt = time.Unix(createdAt, 0)
	swap.UpdatedAt = time.Unix(updatedAt, 0)
	swap.ExpiresAt = time.Unix(expiresAt, 0)

	return &swap, nil
}
