package models

import (
	"time"
)

// Stock is a votable subject. TickerDirection holds a subjectkey.Key.
type Stock struct {
	ID              uint      `gorm:"primaryKey" json:"id"` // also the insertion order used to break score ties
	TickerDirection string    `gorm:"column:ticker_direction;uniqueIndex;size:16;not null" json:"ticker_direction"`
	Description     string    `gorm:"type:text" json:"description"`
	PostedBy        uint      `gorm:"not null;index" json:"posted_by"`
	Poster          User      `gorm:"foreignKey:PostedBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Votes           int       `gorm:"not null;default:0" json:"votes"`       // up - down
	TotalVotes      int       `gorm:"not null;default:0" json:"total_votes"` // up + down
	CreatedAt       time.Time `json:"created_at"`
}
