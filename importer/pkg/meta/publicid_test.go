package meta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImporter_Meta_PublicID_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, seq := range []uint64{0, 1, 2, 57, 1000, 123456789} {
		id, err := EncodePublicID(seq)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(id), publicIDMinLength)

		decoded, err := DecodePublicID(id)
		require.NoError(t, err)
		require.Equal(t, seq, decoded)
	}
}

func TestImporter_Meta_PublicID_DistinctSequencesDistinctIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]uint64)
	for seq := uint64(0); seq < 10_000; seq++ {
		id, err := EncodePublicID(seq)
		require.NoError(t, err)
		if prev, ok := seen[id]; ok {
			t.Fatalf("sequences %d and %d both encode to %q", prev, seq, id)
		}
		seen[id] = seq
	}
}

func TestImporter_Meta_PublicID_RejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "!!!!", "not a public id"} {
		_, err := DecodePublicID(id)
		require.Error(t, err)
	}
}
