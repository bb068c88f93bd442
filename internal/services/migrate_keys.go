package services

import (
	"context"
	"fmt"
	"strings"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/subjectkey"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateLegacyKeys rewrites every ticker-only key in stocks and stock_votes to
// ticker:direction using dir. It runs in a single transaction; if a rewritten
// key already exists as a stock the whole migration is aborted with ErrAlreadyExists.
// Returns the number of stocks rewritten.
func MigrateLegacyKeys(ctx context.Context, db *gorm.DB, dir subjectkey.Direction) (int, error) {
	if !dir.Valid() {
		return 0, subjectkey.ErrInvalidDirection
	}

	migrated := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stocks []models.Stock
		if err := tx.Where("ticker_direction NOT LIKE ?", "%"+subjectkey.Separator+"%").Find(&stocks).Error; err != nil {
			return storeErr("load legacy stocks", err)
		}

		for _, s := range stocks {
			newKey, err := legacyToKey(s.TickerDirection, dir)
			if err != nil {
				return err
			}

			var n int64
			if err := tx.Model(&models.Stock{}).Where("ticker_direction = ?", newKey.String()).Count(&n).Error; err != nil {
				return storeErr("check key collision", err)
			}
			if n > 0 {
				return fmt.Errorf("%w: %s collides with existing %s", ErrAlreadyExists, s.TickerDirection, newKey)
			}

			if err := tx.Model(&models.Stock{}).Where("id = ?", s.ID).
				UpdateColumn("ticker_direction", newKey.String()).Error; err != nil {
				return storeErr("rewrite stock key", err)
			}
			if err := tx.Model(&models.StockVote{}).Where("ticker_direction = ?", s.TickerDirection).
				UpdateColumn("ticker_direction", newKey.String()).Error; err != nil {
				return storeErr("rewrite vote keys", err)
			}
			migrated++
		}

		// 没有对应股票的旧投票记录也一并改写
		var orphans []string
		if err := tx.Model(&models.StockVote{}).
			Where("ticker_direction NOT LIKE ?", "%"+subjectkey.Separator+"%").
			Distinct().Pluck("ticker_direction", &orphans).Error; err != nil {
			return storeErr("load legacy votes", err)
		}
		for _, old := range orphans {
			newKey, err := legacyToKey(old, dir)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.StockVote{}).Where("ticker_direction = ?", old).
				UpdateColumn("ticker_direction", newKey.String()).Error; err != nil {
				return storeErr("rewrite vote keys", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{"migrated": migrated, "direction": dir.String()}).Info("Legacy stock keys migrated")
	return migrated, nil
}

func legacyToKey(old string, dir subjectkey.Direction) (subjectkey.Key, error) {
	if !subjectkey.IsLegacy(subjectkey.Key(old)) {
		return "", fmt.Errorf("%w: %q is neither legacy nor extended", subjectkey.ErrInvalidKey, old)
	}
	return subjectkey.Encode(strings.TrimSpace(old), dir)
}
