package services

import (
	"context"
	"errors"
	"wallstreetvotes/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Transition is what Toggle did to a user.
type Transition string

const (
	Promoted Transition = "Promoted"
	Demoted  Transition = "Demoted"
)

// CandidateView is one row of the leader board.
type CandidateView struct {
	ID               uint   `json:"id"`
	Username         string `json:"username"`
	IsLeader         bool   `json:"is_leader"`
	LeaderVotes      int    `json:"leader_votes"`
	TotalLeaderVotes int    `json:"total_leader_votes"`
}

// Leadership owns the promoted/demoted flag and the leader-vote tallies on users.
type Leadership struct {
	db     *gorm.DB
	ledger *VoteLedger[uint]
}

func NewLeadership(db *gorm.DB, ledger *VoteLedger[uint]) *Leadership {
	return &Leadership{db: db, ledger: ledger}
}

// Ledger exposes the leader ledger for callers that need HasVoted.
func (l *Leadership) Ledger() *VoteLedger[uint] { return l.ledger }

// Toggle flips is_leader in place and reports the transition.
func (l *Leadership) Toggle(ctx context.Context, userID uint) (Transition, error) {
	var isLeader bool
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("is_leader", gorm.Expr("NOT is_leader"))
		if res.Error != nil {
			return storeErr("toggle leader", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var user models.User
		if err := tx.Select("id", "is_leader").Take(&user, userID).Error; err != nil {
			return storeErr("toggle leader", err)
		}
		isLeader = user.IsLeader
		return nil
	})
	if err != nil {
		return "", err
	}

	transition := Demoted
	if isLeader {
		transition = Promoted
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "transition": transition}).Info("Leadership toggled")
	return transition, nil
}

// VoteLeader records one leader vote and adjusts the candidate's counters atomically.
func (l *Leadership) VoteLeader(ctx context.Context, candidateID, voterID uint, dir VoteDirection) error {
	if candidateID == voterID {
		return ErrSelfVote
	}
	if !dir.Valid() {
		return ErrInvalidVote
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, voterID, "check voter"); err != nil {
			return err
		}

		if err := l.ledger.Cast(tx, candidateID, voterID, dir); err != nil {
			return err
		}

		res := tx.Model(&models.User{}).Where("id = ?", candidateID).
			UpdateColumns(map[string]interface{}{
				"leader_votes":       gorm.Expr("leader_votes + ?", int(dir)),
				"total_leader_votes": gorm.Expr("total_leader_votes + ?", 1),
			})
		if res.Error != nil {
			return storeErr("apply leader vote", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		var se *StoreError
		if errors.As(err, &se) {
			logrus.WithFields(logrus.Fields{
				"candidate_id": candidateID,
				"voter_id":     voterID,
				"error":        err.Error(),
			}).Error("Leader vote failed")
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"candidate_id": candidateID, "voter_id": voterID, "direction": dir.String()}).Info("Leader voted")
	return nil
}

// ListCandidates returns every user by net leader votes, oldest account first on ties.
func (l *Leadership) ListCandidates(ctx context.Context) ([]CandidateView, error) {
	views := make([]CandidateView, 0)
	err := l.db.WithContext(ctx).Model(&models.User{}).
		Select("id, username, is_leader, leader_votes, total_leader_votes").
		Order("leader_votes DESC, id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, storeErr("list candidates", err)
	}
	return views, nil
}

// ListLeaders is ListCandidates restricted to promoted users.
func (l *Leadership) ListLeaders(ctx context.Context) ([]CandidateView, error) {
	views := make([]CandidateView, 0)
	err := l.db.WithContext(ctx).Model(&models.User{}).
		Select("id, username, is_leader, leader_votes, total_leader_votes").
		Where("is_leader = ?", true).
		Order("leader_votes DESC, id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, storeErr("list leaders", err)
	}
	return views, nil
}
