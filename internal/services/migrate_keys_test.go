package services

import (
	"context"
	"testing"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/subjectkey"
	"wallstreetvotes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacyKeys(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	a := testutil.CreateTestUser(t, conn, "alice")
	b := testutil.CreateTestUser(t, conn, "bob")

	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "AAPL", PostedBy: a.ID, Votes: 2, TotalVotes: 2}).Error)
	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "GME:0", PostedBy: a.ID, Votes: 1, TotalVotes: 1}).Error)
	require.NoError(t, conn.Create(&models.StockVote{TickerDirection: "AAPL", Voter: a.ID, Direction: 1}).Error)
	require.NoError(t, conn.Create(&models.StockVote{TickerDirection: "AAPL", Voter: b.ID, Direction: 1}).Error)
	require.NoError(t, conn.Create(&models.StockVote{TickerDirection: "GME:0", Voter: a.ID, Direction: 1}).Error)
	require.NoError(t, conn.Create(&models.StockVote{TickerDirection: "GONE", Voter: b.ID, Direction: -1}).Error)

	n, err := MigrateLegacyKeys(ctx, conn, subjectkey.Long)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var keys []string
	require.NoError(t, conn.Model(&models.Stock{}).Order("id").Pluck("ticker_direction", &keys).Error)
	assert.Equal(t, []string{"AAPL:1", "GME:0"}, keys)

	var voteKeys []string
	require.NoError(t, conn.Model(&models.StockVote{}).Order("id").Pluck("ticker_direction", &voteKeys).Error)
	assert.Equal(t, []string{"AAPL:1", "AAPL:1", "GME:0", "GONE:1"}, voteKeys)

	tally := NewTallyProjection(conn, NewStockLedger(conn), nil, 0)
	drifts, err := tally.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// idempotent
	n, err = MigrateLegacyKeys(ctx, conn, subjectkey.Long)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrateLegacyKeysCollisionAborts(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	a := testutil.CreateTestUser(t, conn, "alice")

	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "TSLA", PostedBy: a.ID}).Error)
	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "NVDA", PostedBy: a.ID}).Error)
	require.NoError(t, conn.Create(&models.Stock{TickerDirection: "NVDA:1", PostedBy: a.ID}).Error)

	_, err := MigrateLegacyKeys(context.Background(), conn, subjectkey.Long)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	var keys []string
	require.NoError(t, conn.Model(&models.Stock{}).Order("id").Pluck("ticker_direction", &keys).Error)
	assert.Equal(t, []string{"TSLA", "NVDA", "NVDA:1"}, keys, "nothing is rewritten when one key collides")
}
