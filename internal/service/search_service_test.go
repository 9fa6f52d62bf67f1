package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	"github.com/noah-isme/file-manager-api/pkg/cursor"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
)

func seedFiles(repo *mockFileRepo, owner string, n int, base time.Time) []models.FileRecord {
	records := make([]models.FileRecord, 0, n)
	for i := 0; i < n; i++ {
		// Pairs share a timestamp so the id tiebreak is exercised.
		at := base.Add(time.Duration(i/2) * time.Minute)
		rec := models.FileRecord{
			ID:               uuid.NewString(),
			OwnerID:          owner,
			OriginalFilename: fmt.Sprintf("file-%02d.txt", i),
			ContentHash:      fmt.Sprintf("%s-%d", owner, i),
			SizeBytes:        int64(i + 1),
			FileType:         "txt",
			UploadedAt:       at,
		}
		repo.byID[rec.ID] = rec
		records = append(records, rec)
	}
	return records
}

func newSearchFixture(repo *mockFileRepo) (*SearchService, *CacheService) {
	cache := NewCacheService(repository.NewMemoryCacheRepository(128, time.Minute), nil, time.Minute, nil, true)
	return NewSearchService(repo, cursor.NewCodec("cursor-secret"), cache, nil, SearchConfig{DefaultPageSize: 20, MaxPageSize: 100}), cache
}

func ids(records []models.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSearchServiceTraversalVisitsEveryRecordOnce(t *testing.T) {
	repo := newMockFileRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedFiles(repo, "owner-1", 25, base)
	seedFiles(repo, "owner-2", 5, base)
	svc, _ := newSearchFixture(repo)
	ctx := context.Background()
	actor := actorFor("owner-1")

	var pages [][]models.FileRecord
	token := ""
	for {
		page, _, err := svc.List(ctx, ListRequest{Cursor: token, PageSize: 10}, actor)
		require.NoError(t, err)
		pages = append(pages, page.Items)
		if page.Pagination.NextCursor == nil {
			break
		}
		token = *page.Pagination.NextCursor
	}

	require.Len(t, pages, 3)
	assert.Len(t, pages[0], 10)
	assert.Len(t, pages[1], 10)
	assert.Len(t, pages[2], 5)

	seen := map[string]int{}
	var all []models.FileRecord
	for _, p := range pages {
		for _, rec := range p {
			seen[rec.ID]++
			assert.Equal(t, "owner-1", rec.OwnerID)
		}
		all = append(all, p...)
	}
	assert.Len(t, seen, 25)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
	for i := 1; i < len(all); i++ {
		assert.Positive(t, keysetCompare(all[i-1], all[i].UploadedAt, all[i].ID), "records out of order at %d", i)
	}
}

func TestSearchServicePreviousCursorReturnsPriorPage(t *testing.T) {
	repo := newMockFileRepo()
	seedFiles(repo, "owner-1", 25, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newSearchFixture(repo)
	ctx := context.Background()
	actor := actorFor("owner-1")

	first, _, err := svc.List(ctx, ListRequest{PageSize: 10}, actor)
	require.NoError(t, err)
	assert.Nil(t, first.Pagination.PreviousCursor)

	second, _, err := svc.List(ctx, ListRequest{PageSize: 10, Cursor: *first.Pagination.NextCursor}, actor)
	require.NoError(t, err)
	require.NotNil(t, second.Pagination.PreviousCursor)

	back, _, err := svc.List(ctx, ListRequest{PageSize: 10, Cursor: *second.Pagination.PreviousCursor}, actor)
	require.NoError(t, err)
	assert.Equal(t, ids(first.Items), ids(back.Items))
	assert.Nil(t, back.Pagination.PreviousCursor)
	require.NotNil(t, back.Pagination.NextCursor)
}

func TestSearchServiceRejectsInvertedRange(t *testing.T) {
	svc, _ := newSearchFixture(newMockFileRepo())
	after := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.List(context.Background(), ListRequest{Filter: models.FileFilter{UploadedAfter: &after, UploadedBefore: &before}}, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	lo, hi := int64(100), int64(10)
	_, _, err = svc.List(context.Background(), ListRequest{Filter: models.FileFilter{MinSize: &lo, MaxSize: &hi}}, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSearchServiceRejectsForeignOrTamperedCursor(t *testing.T) {
	repo := newMockFileRepo()
	seedFiles(repo, "owner-1", 5, time.Now().UTC())
	svc, _ := newSearchFixture(repo)
	ctx := context.Background()
	actor := actorFor("owner-1")

	page, _, err := svc.List(ctx, ListRequest{PageSize: 2}, actor)
	require.NoError(t, err)
	token := *page.Pagination.NextCursor

	_, _, err = svc.List(ctx, ListRequest{PageSize: 2, Cursor: token, Filter: models.FileFilter{Search: "other"}}, actor)
	require.ErrorIs(t, err, appErrors.ErrInvalidCursor)

	_, _, err = svc.List(ctx, ListRequest{PageSize: 2, Cursor: token}, actorFor("owner-2"))
	require.ErrorIs(t, err, appErrors.ErrInvalidCursor)

	_, _, err = svc.List(ctx, ListRequest{PageSize: 2, Cursor: token + "x"}, actor)
	require.ErrorIs(t, err, appErrors.ErrInvalidCursor)
}

func TestSearchServiceClampsPageSize(t *testing.T) {
	repo := newMockFileRepo()
	seedFiles(repo, "owner-1", 3, time.Now().UTC())
	svc, _ := newSearchFixture(repo)

	page, _, err := svc.List(context.Background(), ListRequest{PageSize: 1000}, actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.PageSize)

	page, _, err = svc.List(context.Background(), ListRequest{PageSize: -3}, actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, 20, page.Pagination.PageSize)
	assert.Nil(t, page.Pagination.NextCursor)
}

func TestSearchServiceCachesAndInvalidatesOnWrite(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	svc := NewSearchService(f.repo, cursor.NewCodec("cursor-secret"), f.cache, nil, SearchConfig{})
	ctx := context.Background()
	actor := actorFor("owner-1")
	uploadText(t, f, "owner-1", "a.txt", "first")

	page, hit, err := svc.List(ctx, ListRequest{}, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, page.Items, 1)

	page, hit, err = svc.List(ctx, ListRequest{}, actor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, f.repo.listCalls)

	uploadText(t, f, "owner-1", "b.txt", "second")
	page, hit, err = svc.List(ctx, ListRequest{}, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, page.Items, 2)

	require.NoError(t, f.svc.Delete(ctx, page.Items[0].ID, actor))
	require.NoError(t, f.svc.Delete(ctx, page.Items[1].ID, actor))
	page, hit, err = svc.List(ctx, ListRequest{}, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, page.Items)
}

func TestSearchServiceFiltersByName(t *testing.T) {
	repo := newMockFileRepo()
	seedFiles(repo, "owner-1", 12, time.Now().UTC())
	svc, _ := newSearchFixture(repo)

	page, _, err := svc.List(context.Background(), ListRequest{Filter: models.FileFilter{Search: "FILE-1"}}, actorFor("owner-1"))
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestSearchServicePreviousPastDeletedRowsRestartsAtFirstPage(t *testing.T) {
	repo := newMockFileRepo()
	seeded := seedFiles(repo, "owner-1", 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := newSearchFixture(repo)
	ctx := context.Background()
	actor := actorFor("owner-1")

	first, _, err := svc.List(ctx, ListRequest{PageSize: 2}, actor)
	require.NoError(t, err)
	second, _, err := svc.List(ctx, ListRequest{PageSize: 2, Cursor: *first.Pagination.NextCursor}, actor)
	require.NoError(t, err)
	require.NotNil(t, second.Pagination.PreviousCursor)

	repo.mu.Lock()
	for _, rec := range first.Items {
		delete(repo.byID, rec.ID)
	}
	repo.mu.Unlock()

	back, _, err := svc.List(ctx, ListRequest{PageSize: 2, Cursor: *second.Pagination.PreviousCursor}, actor)
	require.NoError(t, err)
	assert.Equal(t, ids(second.Items), ids(back.Items))
	assert.Nil(t, back.Pagination.PreviousCursor)
	require.NotNil(t, back.Pagination.NextCursor)

	var visited []string
	visited = append(visited, ids(back.Items)...)
	token := *back.Pagination.NextCursor
	for {
		page, _, err := svc.List(ctx, ListRequest{PageSize: 2, Cursor: token}, actor)
		require.NoError(t, err)
		visited = append(visited, ids(page.Items)...)
		if page.Pagination.NextCursor == nil {
			break
		}
		token = *page.Pagination.NextCursor
	}

	var survivors []string
	for _, rec := range seeded {
		if _, ok := repo.byID[rec.ID]; ok {
			survivors = append(survivors, rec.ID)
		}
	}
	assert.ElementsMatch(t, survivors, visited)
	assert.Len(t, visited, 3)
}

func TestSearchServiceFiltersRecentlyAccessed(t *testing.T) {
	repo := newMockFileRepo()
	seeded := seedFiles(repo, "owner-1", 4, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fresh := time.Now().UTC().Add(-time.Hour)
	stale := time.Now().UTC().AddDate(0, 0, -30)
	for i, at := range []time.Time{fresh, stale} {
		rec := seeded[i]
		accessed := at
		rec.LastAccessedAt = &accessed
		repo.byID[rec.ID] = rec
	}
	svc, _ := newSearchFixture(repo)

	days := 7
	page, _, err := svc.List(context.Background(), ListRequest{Filter: models.FileFilter{AccessedWithinDays: &days}}, actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{seeded[0].ID}, ids(page.Items))

	days = 0
	_, _, err = svc.List(context.Background(), ListRequest{Filter: models.FileFilter{AccessedWithinDays: &days}}, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
