package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImporter_Meta_NewFilterOption(t *testing.T) {
	t.Parallel()

	t.Run("total is the aggregate", func(t *testing.T) {
		t.Parallel()
		opt := NewFilterOption("Total")
		require.True(t, opt.IsAggregate)
		require.Equal(t, "Total,True", opt.RowKey())
	})

	t.Run("anything else is not", func(t *testing.T) {
		t.Parallel()
		for _, label := range []string{"Male", "Female", "total", "TOTAL"} {
			opt := NewFilterOption(label)
			require.False(t, opt.IsAggregate, "label %q", label)
			require.Equal(t, label+",", opt.RowKey())
		}
	})
}
