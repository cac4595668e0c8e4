package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filegram/filegram/catalog"
)

func TestInsertAndLookup(t *testing.T) {
	repo := catalog.NewInMemoryRepo()

	entry := catalog.Entry{
		ID:          101,
		OwnerID:     1,
		Title:       "notes.txt",
		MimeType:    "text/plain",
		URL:         "/files/101",
		DownloadURL: "/files/101?download=1",
	}
	require.NoError(t, repo.Insert(entry))

	got, ok := repo.ByID(101)
	require.True(t, ok)
	require.Equal(t, entry, got)

	_, ok = repo.ByID(999)
	require.False(t, ok)
}

func TestInsertRejectsDuplicatesAndZeroIDs(t *testing.T) {
	repo := catalog.NewInMemoryRepo()

	require.Error(t, repo.Insert(catalog.Entry{Title: "missing id"}))

	require.NoError(t, repo.Insert(catalog.Entry{ID: 5, OwnerID: 1}))
	require.Error(t, repo.Insert(catalog.Entry{ID: 5, OwnerID: 1}))
}

func TestByOwnerFiltersAndPreservesOrder(t *testing.T) {
	repo := catalog.NewInMemoryRepo()

	require.NoError(t, repo.Insert(catalog.Entry{ID: 1, OwnerID: 10, Title: "a"}))
	require.NoError(t, repo.Insert(catalog.Entry{ID: 2, OwnerID: 20, Title: "b"}))
	require.NoError(t, repo.Insert(catalog.Entry{ID: 3, OwnerID: 10, Title: "c"}))

	owned := repo.ByOwner(10)
	require.Len(t, owned, 2)
	require.Equal(t, "a", owned[0].Title)
	require.Equal(t, "c", owned[1].Title)

	require.Empty(t, repo.ByOwner(30))
}
