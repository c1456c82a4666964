package worker

import (
	"context"
	"errors"
	"testing"

	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	"anoa.com/challengebot/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeDrift struct {
	drifts []pointsRepo.Drift
	err    error
}

func (f fakeDrift) Drift(context.Context) ([]pointsRepo.Drift, error) {
	return f.drifts, f.err
}

func TestReconcilerLogsEachDrift(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	r := NewReconciler(fakeDrift{drifts: []pointsRepo.Drift{
		{GuildID: "G", UserID: "A", Balance: 10, Ledger: 7},
		{GuildID: "G", UserID: "B", Balance: 0, Ledger: 3},
	}})

	n, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries := logs.FilterMessage("balance drifted from ledger").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].ContextMap()["user_id"])
	assert.Equal(t, int64(7), entries[0].ContextMap()["ledger"])
}

func TestReconcilerPropagatesError(t *testing.T) {
	r := NewReconciler(fakeDrift{err: errors.New("db down")})
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}
