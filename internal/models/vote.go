package models

import (
	"time"
)

// StockVote is one immutable ledger row. The composite unique index is what
// guarantees one vote per (subject, voter); callers must not rely on a pre-check.
type StockVote struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TickerDirection string    `gorm:"column:ticker_direction;size:16;not null;uniqueIndex:idx_stock_votes_subject_voter,priority:1" json:"ticker_direction"`
	Voter           uint      `gorm:"not null;uniqueIndex:idx_stock_votes_subject_voter,priority:2;index" json:"voter"`
	Direction       int       `gorm:"not null" json:"direction"` // 1 or -1
	CreatedAt       time.Time `json:"created_at"`
}

// LeaderVote is the same ledger shape keyed by candidate user id.
type LeaderVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Candidate uint      `gorm:"not null;uniqueIndex:idx_leader_votes_candidate_voter,priority:1" json:"candidate"`
	Voter     uint      `gorm:"not null;uniqueIndex:idx_leader_votes_candidate_voter,priority:2;index" json:"voter"`
	Direction int       `gorm:"not null" json:"direction"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Stock{},
		&StockVote{},
		&LeaderVote{},
	}
}
