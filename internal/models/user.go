package models

import (
	"time"
)

type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash     string    `gorm:"column:password_hash;not null" json:"-"` // bcrypt, per-user salt
	IsLeader         bool      `gorm:"not null;default:false" json:"is_leader"`
	LeaderVotes      int       `gorm:"not null;default:0" json:"leader_votes"`       // 净得票
	TotalLeaderVotes int       `gorm:"not null;default:0" json:"total_leader_votes"` // 总投票次数
	CreatedAt        time.Time `json:"created_at"`
	// Users are never deleted
}
