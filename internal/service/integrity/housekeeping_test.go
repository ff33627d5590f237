package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/servio/internal/config"
)

type countingPruner struct {
	calls int
}

func (p *countingPruner) Prune() int {
	p.calls++
	return 2
}

func TestRunOnceFixesConfiguredTypes(t *testing.T) {
	svc, seed := newService(t)
	core, logs := observer.New(zap.DebugLevel)
	pruner := &countingPruner{}

	terrace := seed.Location("Terrace", false)
	table := seed.Table(7, &terrace.ID, true)

	h := newHousekeeper(svc, pruner, config.Housekeeping{
		Enabled:  true,
		Interval: time.Minute,
		AutoFix:  []string{"active_table_inactive_location"},
	}, zap.New(core))

	h.RunOnce(context.Background())

	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 1, logs.FilterMessage("integrity issues detected").Len())
	assert.Equal(t, 1, logs.FilterMessage("pruned realtime subscribers").Len())
	assert.False(t, seed.ReloadTable(table.ID).IsActive)
	assert.Zero(t, svc.OpenIssues())
}

func TestRunOnceWithoutAutoFixOnlyReports(t *testing.T) {
	svc, seed := newService(t)
	terrace := seed.Location("Terrace", false)
	table := seed.Table(7, &terrace.ID, true)

	h := newHousekeeper(svc, nil, config.Housekeeping{Enabled: true}, zap.NewNop())
	h.RunOnce(context.Background())

	assert.True(t, seed.ReloadTable(table.ID).IsActive)
	assert.EqualValues(t, 1, svc.OpenIssues())
}

func TestStartStop(t *testing.T) {
	svc, _ := newService(t)

	disabled := newHousekeeper(svc, nil, config.Housekeeping{}, zap.NewNop())
	require.NoError(t, disabled.start(context.Background()))
	require.NoError(t, disabled.stop(context.Background()))

	h := newHousekeeper(svc, nil, config.Housekeeping{Enabled: true, Interval: time.Hour}, zap.NewNop())
	require.NoError(t, h.start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.stop(ctx))
}
