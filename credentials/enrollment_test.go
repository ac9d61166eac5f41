package credentials_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/credentials/storefake"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("format and parse", func(t *testing.T) {
		require.Equal(t, "MIRA0007", credentials.FormatEnrollmentID(7))
		require.Equal(t, "MIRA12345", credentials.FormatEnrollmentID(12345))
		n, err := credentials.ParseEnrollmentID("MIRA0042")
		require.NoError(t, err)
		require.Equal(t, 42, n)
		_, err = credentials.ParseEnrollmentID("STU0042")
		require.Error(t, err)
		_, err = credentials.ParseEnrollmentID("MIRAxx")
		require.Error(t, err)
	})

	t.Run("next starts at one", func(t *testing.T) {
		next, err := credentials.NextEnrollmentID(ctx, storefake.NewFakeStore())
		require.NoError(t, err)
		require.Equal(t, "MIRA0001", next)
	})

	t.Run("record then next", func(t *testing.T) {
		store := storefake.NewFakeStore()
		require.NoError(t, credentials.RecordEnrollmentID(ctx, store, "MIRA0009"))
		next, err := credentials.NextEnrollmentID(ctx, store)
		require.NoError(t, err)
		require.Equal(t, "MIRA0010", next)
	})

	t.Run("record never rewinds", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyLastEnrollmentID: "MIRA0020"})
		require.NoError(t, credentials.RecordEnrollmentID(ctx, store, "MIRA0003"))
		last, _ := store.Value(credentials.KeyLastEnrollmentID)
		require.Equal(t, "MIRA0020", last)
	})

	t.Run("reset", func(t *testing.T) {
		store := storefake.NewSeededFakeStore(map[credentials.Key]string{credentials.KeyLastEnrollmentID: "MIRA0020"})
		require.NoError(t, credentials.ResetEnrollmentID(ctx, store))
		next, err := credentials.NextEnrollmentID(ctx, store)
		require.NoError(t, err)
		require.Equal(t, "MIRA0001", next)
	})
}
