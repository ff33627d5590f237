package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestGraphsResolve(t *testing.T) {
	graphs := map[string]fx.Option{
		"http":   HTTP,
		"worker": Worker,
	}
	for name, graph := range graphs {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.ValidateApp(graph, fx.NopLogger))
		})
	}
}
