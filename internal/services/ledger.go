package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"wallstreetvotes/internal/models"

	"gorm.io/gorm"
)

// VoteDirection is the value stored in a ledger row.
type VoteDirection int

const (
	Up   VoteDirection = 1
	Down VoteDirection = -1
)

func (d VoteDirection) Valid() bool { return d == Up || d == Down }

func (d VoteDirection) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseVoteDirection reads the `up` form value: 1/true/up or 0/false/down.
func ParseVoteDirection(s string) (VoteDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "up", "":
		return Up, nil
	case "0", "false", "down", "-1":
		return Down, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidVote, s)
}

// VoteLedger is an append-only table of (key, voter, direction) rows.
// K is the subject key type: a stock key string or a candidate user id.
type VoteLedger[K ~string | ~uint] struct {
	db        *gorm.DB
	model     interface{}
	keyColumn string
	newRow    func(key K, voterID uint, dir VoteDirection) interface{}
}

// NewStockLedger is the ledger behind stock_votes.
func NewStockLedger(db *gorm.DB) *VoteLedger[string] {
	return &VoteLedger[string]{
		db:        db,
		model:     &models.StockVote{},
		keyColumn: "ticker_direction",
		newRow: func(key string, voterID uint, dir VoteDirection) interface{} {
			return &models.StockVote{TickerDirection: key, Voter: voterID, Direction: int(dir)}
		},
	}
}

// NewLeaderLedger is the ledger behind leader_votes.
func NewLeaderLedger(db *gorm.DB) *VoteLedger[uint] {
	return &VoteLedger[uint]{
		db:        db,
		model:     &models.LeaderVote{},
		keyColumn: "candidate",
		newRow: func(key uint, voterID uint, dir VoteDirection) interface{} {
			return &models.LeaderVote{Candidate: key, Voter: voterID, Direction: int(dir)}
		},
	}
}

// HasVoted returns the direction previously cast by voterID, if any.
func (l *VoteLedger[K]) HasVoted(ctx context.Context, key K, voterID uint) (VoteDirection, bool, error) {
	var dirs []int
	err := l.db.WithContext(ctx).Model(l.model).
		Where(l.keyColumn+" = ? AND voter = ?", key, voterID).
		Limit(1).
		Pluck("direction", &dirs).Error
	if err != nil {
		return 0, false, storeErr("has voted", err)
	}
	if len(dirs) == 0 {
		return 0, false, nil
	}
	return VoteDirection(dirs[0]), true, nil
}

// Cast appends one row on tx. It never overwrites: a second row for the same
// (key, voter) violates the unique index and comes back as ErrAlreadyVoted.
func (l *VoteLedger[K]) Cast(tx *gorm.DB, key K, voterID uint, dir VoteDirection) error {
	if !dir.Valid() {
		return ErrInvalidVote
	}
	if err := tx.Create(l.newRow(key, voterID, dir)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyVoted
		}
		return storeErr("cast vote", err)
	}
	return nil
}

// Count derives (up, down) for key straight from the ledger.
func (l *VoteLedger[K]) Count(ctx context.Context, key K) (up, down int64, err error) {
	return l.count(l.db.WithContext(ctx), key)
}

func (l *VoteLedger[K]) count(tx *gorm.DB, key K) (up, down int64, err error) {
	err = tx.Model(l.model).Where(l.keyColumn+" = ? AND direction = ?", key, int(Up)).Count(&up).Error
	if err != nil {
		return 0, 0, storeErr("count votes", err)
	}
	err = tx.Model(l.model).Where(l.keyColumn+" = ? AND direction = ?", key, int(Down)).Count(&down).Error
	if err != nil {
		return 0, 0, storeErr("count votes", err)
	}
	return up, down, nil
}

// LedgerTally is the per-key aggregate derived from ledger rows.
type LedgerTally struct {
	Key   string
	Up    int64
	Down  int64
	Net   int64
	Total int64
}

// Tallies aggregates every key in the ledger in one query.
func (l *VoteLedger[K]) Tallies(ctx context.Context) (map[string]LedgerTally, error) {
	var rows []struct {
		Subject string
		Up      int64
		Down    int64
	}
	err := l.db.WithContext(ctx).Model(l.model).
		Select(l.keyColumn + " AS subject, " +
			"SUM(CASE WHEN direction > 0 THEN 1 ELSE 0 END) AS up, " +
			"SUM(CASE WHEN direction < 0 THEN 1 ELSE 0 END) AS down").
		Group(l.keyColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("aggregate ledger", err)
	}

	out := make(map[string]LedgerTally, len(rows))
	for _, r := range rows {
		out[r.Subject] = LedgerTally{Key: r.Subject, Up: r.Up, Down: r.Down, Net: r.Up - r.Down, Total: r.Up + r.Down}
	}
	return out, nil
}

// requireUser fails with ErrNotFound unless userID exists. Run it on the vote's tx.
func requireUser(tx *gorm.DB, userID uint, op string) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
