package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/subjectkey"
	"wallstreetvotes/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const subjectsCacheKey = "stocks:list"

// SubjectView is one row of the stock listing, joined with the poster's username.
type SubjectView struct {
	ID           uint                 `json:"id"`
	SubjectKey   string               `json:"key"`
	Ticker       string               `json:"ticker"`
	Direction    subjectkey.Direction `json:"direction"`
	Description  string               `json:"description"`
	PostedBy     uint                 `json:"posted_by"`
	PostedByName string               `json:"posted_by_name"`
	Votes        int                  `json:"votes"`
	TotalVotes   int                  `json:"total_votes"`
	Legacy       bool                 `json:"legacy,omitempty"` // ticker-only key, direction unknown
}

// TallyProjection keeps stocks.votes / stocks.total_votes in step with stock_votes.
type TallyProjection struct {
	db       *gorm.DB
	ledger   *VoteLedger[string]
	cache    utils.Cache
	cacheTTL time.Duration
	gen      atomic.Uint64 // bumped by every invalidate
}

func NewTallyProjection(db *gorm.DB, ledger *VoteLedger[string], cache utils.Cache, cacheTTL time.Duration) *TallyProjection {
	if cache == nil {
		cache = utils.NopCache{}
	}
	return &TallyProjection{db: db, ledger: ledger, cache: cache, cacheTTL: cacheTTL}
}

// Ledger exposes the stock ledger for callers that need HasVoted.
func (t *TallyProjection) Ledger() *VoteLedger[string] { return t.ledger }

// CreateSubject inserts the stock and the poster's implicit upvote in one
// transaction. If the vote fails the stock row is rolled back with it.
func (t *TallyProjection) CreateSubject(ctx context.Context, key subjectkey.Key, description string, ownerID uint) error {
	if err := subjectkey.Validate(key); err != nil {
		return err
	}

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, ownerID, "check owner"); err != nil {
			return err
		}

		stock := models.Stock{
			TickerDirection: key.String(),
			Description:     description,
			PostedBy:        ownerID,
		}
		if err := tx.Create(&stock).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists
			}
			return storeErr("create stock", err)
		}

		if err := t.ledger.Cast(tx, key.String(), ownerID, Up); err != nil {
			return err
		}
		return t.ApplyVote(tx, key, Up)
	})
	if err != nil {
		t.logFailure("CreateSubject", key, ownerID, err)
		return err
	}

	t.invalidate(ctx)
	logrus.WithFields(logrus.Fields{"subject_key": key, "posted_by": ownerID}).Info("Stock added")
	return nil
}

// Vote appends the ledger row and adjusts the counters as one unit.
func (t *TallyProjection) Vote(ctx context.Context, key subjectkey.Key, voterID uint, dir VoteDirection) error {
	if err := subjectkey.Validate(key); err != nil {
		return err
	}
	if !dir.Valid() {
		return ErrInvalidVote
	}

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, voterID, "check voter"); err != nil {
			return err
		}
		if err := t.ledger.Cast(tx, key.String(), voterID, dir); err != nil {
			return err
		}
		return t.ApplyVote(tx, key, dir)
	})
	if err != nil {
		t.logFailure("Vote", key, voterID, err)
		return err
	}

	t.invalidate(ctx)
	logrus.WithFields(logrus.Fields{"subject_key": key, "voter_id": voterID, "direction": dir.String()}).Info("Stock voted")
	return nil
}

// ApplyVote is the counter half of a vote: votes ± 1, total_votes + 1.
// It must run on the same tx as the ledger append.
func (t *TallyProjection) ApplyVote(tx *gorm.DB, key subjectkey.Key, dir VoteDirection) error {
	res := tx.Model(&models.Stock{}).
		Where("ticker_direction = ?", key.String()).
		UpdateColumns(map[string]interface{}{
			"votes":       gorm.Expr("votes + ?", int(dir)),
			"total_votes": gorm.Expr("total_votes + ?", 1),
		})
	if res.Error != nil {
		return storeErr("apply vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubjects returns every stock by net score, oldest first on ties.
func (t *TallyProjection) ListSubjects(ctx context.Context) ([]SubjectView, error) {
	var views []SubjectView
	if ok, err := t.cache.Get(ctx, subjectsCacheKey, &views); err != nil {
		logrus.WithError(err).Warn("Stock list cache read failed")
	} else if ok {
		return views, nil
	}

	// 读库前记下版本, 期间有写入则不回填缓存
	gen := t.gen.Load()

	views = make([]SubjectView, 0)
	err := t.db.WithContext(ctx).Table("stocks").
		Select("stocks.id, stocks.ticker_direction AS subject_key, stocks.description, stocks.posted_by, " +
			"users.username AS posted_by_name, stocks.votes, stocks.total_votes").
		Joins("JOIN users ON users.id = stocks.posted_by").
		Order("stocks.votes DESC, stocks.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, storeErr("list stocks", err)
	}

	for i := range views {
		ticker, dir, err := subjectkey.Decode(subjectkey.Key(views[i].SubjectKey))
		if err != nil {
			// 旧格式 key, 等待 cmd/migrate 处理
			logrus.WithField("subject_key", views[i].SubjectKey).Warn("Stock key is not in ticker:direction form")
			views[i].Ticker = views[i].SubjectKey
			views[i].Legacy = true
			continue
		}
		views[i].Ticker = ticker
		views[i].Direction = dir
	}

	t.fill(ctx, gen, views)
	return views, nil
}

// Exists reports whether a stock with key has been added.
func (t *TallyProjection) Exists(ctx context.Context, key subjectkey.Key) (bool, error) {
	var n int64
	if err := t.db.WithContext(ctx).Model(&models.Stock{}).Where("ticker_direction = ?", key.String()).Count(&n).Error; err != nil {
		return false, storeErr("check stock", err)
	}
	return n > 0, nil
}

// Recount rewrites a stock's counters from its ledger rows.
func (t *TallyProjection) Recount(ctx context.Context, key subjectkey.Key) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		up, down, err := t.ledger.count(tx, key.String())
		if err != nil {
			return err
		}
		res := tx.Model(&models.Stock{}).
			Where("ticker_direction = ?", key.String()).
			UpdateColumns(map[string]interface{}{
				"votes":       up - down,
				"total_votes": up + down,
			})
		if res.Error != nil {
			return storeErr("recount", res.Error)
		}
		if res.RowsAffected == 0 {
			// MySQL reports 0 when the values did not change; confirm the row exists.
			var n int64
			if err := tx.Model(&models.Stock{}).Where("ticker_direction = ?", key.String()).Count(&n).Error; err != nil {
				return storeErr("recount", err)
			}
			if n == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.invalidate(ctx)
	return nil
}

// Drift describes a stock whose stored counters disagree with its ledger.
type Drift struct {
	Key         string
	StoredVotes int
	StoredTotal int
	LedgerVotes int64
	LedgerTotal int64
}

// Audit compares every stock's counters with the ledger and returns mismatches.
func (t *TallyProjection) Audit(ctx context.Context) ([]Drift, error) {
	tallies, err := t.ledger.Tallies(ctx)
	if err != nil {
		return nil, err
	}

	var stocks []models.Stock
	if err := t.db.WithContext(ctx).Order("id").Find(&stocks).Error; err != nil {
		return nil, storeErr("load stocks", err)
	}

	var drifts []Drift
	for _, s := range stocks {
		lt := tallies[s.TickerDirection]
		if int64(s.Votes) != lt.Net || int64(s.TotalVotes) != lt.Total {
			drifts = append(drifts, Drift{
				Key:         s.TickerDirection,
				StoredVotes: s.Votes,
				StoredTotal: s.TotalVotes,
				LedgerVotes: lt.Net,
				LedgerTotal: lt.Total,
			})
		}
	}
	return drifts, nil
}

// fill stores views unless a write invalidated the listing after gen was read.
// The second check catches an invalidate that lands while Set is in flight.
func (t *TallyProjection) fill(ctx context.Context, gen uint64, views []SubjectView) {
	if t.gen.Load() != gen {
		return
	}
	if err := t.cache.Set(ctx, subjectsCacheKey, views, t.cacheTTL); err != nil {
		logrus.WithError(err).Warn("Stock list cache write failed")
		return
	}
	if t.gen.Load() != gen {
		t.invalidate(ctx)
	}
}

func (t *TallyProjection) invalidate(ctx context.Context) {
	t.gen.Add(1)
	if err := t.cache.Delete(ctx, subjectsCacheKey); err != nil {
		logrus.WithError(err).Warn("Stock list cache invalidation failed")
	}
}

func (t *TallyProjection) logFailure(op string, key subjectkey.Key, userID uint, err error) {
	var se *StoreError
	if !errors.As(err, &se) {
		return
	}
	logrus.WithFields(logrus.Fields{
		"op":          op,
		"subject_key": key,
		"user_id":     userID,
		"error":       err.Error(),
	}).Error("Stock write failed")
}
