package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/storage"
)

type mockFileRepo struct {
	mu        sync.Mutex
	byID      map[string]models.FileRecord
	createErr error
	listCalls int
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{byID: map[string]models.FileRecord{}}
}

func (m *mockFileRepo) Create(ctx context.Context, file *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byID[file.ID]; ok {
		return repository.ErrDuplicateFileID
	}
	for _, existing := range m.byID {
		if existing.ContentHash == file.ContentHash {
			return repository.ErrDuplicateHash
		}
	}
	m.byID[file.ID] = *file
	return nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.byID[id]; ok {
		return &f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFileRepo) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error) {
	f, err := m.GetByID(ctx, id)
	if err != nil || f.OwnerID != ownerID {
		return nil, sql.ErrNoRows
	}
	return f, nil
}

func (m *mockFileRepo) GetByHash(ctx context.Context, hash string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byID {
		if f.ContentHash == hash {
			return &f, nil
		}
	}
	return nil, sql.ErrNoRows
}

func keysetCompare(a models.FileRecord, at time.Time, id string) int {
	if c := a.UploadedAt.Compare(at); c != 0 {
		return c
	}
	return strings.Compare(a.ID, id)
}

func (m *mockFileRepo) ListPage(ctx context.Context, q repository.FilePageQuery) ([]models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	filter := q.Filter.Normalize()
	var rows []models.FileRecord
	for _, f := range m.byID {
		if f.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(f.OriginalFilename), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.AccessedWithinDays != nil {
			since := time.Now().UTC().AddDate(0, 0, -*filter.AccessedWithinDays)
			if f.LastAccessedAt == nil || f.LastAccessedAt.Before(since) {
				continue
			}
		}
		if q.After != nil {
			c := keysetCompare(f, q.After.UploadedAt, q.After.ID)
			if (!q.Backward && c >= 0) || (q.Backward && c <= 0) {
				continue
			}
		}
		rows = append(rows, f)
	}
	sort.Slice(rows, func(i, j int) bool {
		c := keysetCompare(rows[i], rows[j].UploadedAt, rows[j].ID)
		if q.Backward {
			return c < 0
		}
		return c > 0
	})
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (m *mockFileRepo) UpdateDescription(ctx context.Context, id, ownerID, description string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok || f.OwnerID != ownerID {
		return nil, sql.ErrNoRows
	}
	f.Description = description
	m.byID[id] = f
	return &f, nil
}

func (m *mockFileRepo) TouchAccess(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.byID[id]; ok {
		f.ViewCount++
		f.LastAccessedAt = &at
		m.byID[id] = f
	}
	return nil
}

func (m *mockFileRepo) DeleteForOwner(ctx context.Context, id, ownerID string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok || f.OwnerID != ownerID {
		return nil, sql.ErrNoRows
	}
	delete(m.byID, id)
	return &f, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *mockFileRepo) Stats(ctx context.Context, ownerID string, recentSince time.Time) (*models.FileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.FileStats{}
	byType := map[string]*models.FileTypeStat{}
	for _, f := range m.byID {
		if f.OwnerID != ownerID {
			continue
		}
		stats.TotalFiles++
		stats.TotalBytes += f.SizeBytes
		if !f.UploadedAt.Before(recentSince) {
			stats.RecentUploads++
		}
		stat, ok := byType[f.FileType]
		if !ok {
			stat = &models.FileTypeStat{FileType: f.FileType}
			byType[f.FileType] = stat
		}
		stat.Count++
		stat.TotalBytes += f.SizeBytes
	}
	for _, stat := range byType {
		stats.ByType = append(stats.ByType, *stat)
	}
	sort.Slice(stats.ByType, func(i, j int) bool { return stats.ByType[i].FileType < stats.ByType[j].FileType })
	return stats, nil
}

func (m *mockFileRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type mockAccessLogRepo struct {
	mu      sync.Mutex
	entries []models.FileAccessLog
}

func (m *mockAccessLogRepo) Create(ctx context.Context, entry *models.FileAccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

type memoryBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
	saves   int
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: map[string][]byte{}}
}

func (m *memoryBlobStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil && strings.HasPrefix(key, "uploads/") {
		return 0, m.saveErr
	}
	m.blobs[key] = data
	return int64(len(data)), nil
}

func (m *memoryBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memoryBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memoryBlobStore) CleanupOlderThan(ctx context.Context, prefix string, ttl time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix+"/") {
			removed = append(removed, key)
			delete(m.blobs, key)
		}
	}
	return removed, nil
}

func (m *memoryBlobStore) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// opaqueReader hides Seek so uploads take the spooling path.
type opaqueReader struct {
	io.Reader
}

type fileFixture struct {
	repo   *mockFileRepo
	access *mockAccessLogRepo
	blobs  *memoryBlobStore
	cache  *CacheService
	svc    *FileService
}

func newFileFixture(cfg FileServiceConfig) *fileFixture {
	repo := newMockFileRepo()
	access := &mockAccessLogRepo{}
	blobs := newMemoryBlobStore()
	cache := NewCacheService(repository.NewMemoryCacheRepository(128, time.Minute), nil, time.Minute, nil, true)
	if cfg.AllowedExtensions == nil {
		cfg.AllowedExtensions = []string{"txt", "pdf", "png", "csv", "zip", "bin"}
	}
	svc := NewFileService(repo, access, blobs, cache, nil, nil, cfg)
	return &fileFixture{repo: repo, access: access, blobs: blobs, cache: cache, svc: svc}
}

func actorFor(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Username: id}
}

func sha256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func uploadText(t *testing.T, f *fileFixture, owner, name, body string) *UploadOutcome {
	t.Helper()
	outcome, err := f.svc.Upload(context.Background(), UploadRequest{Filename: name, DeclaredSize: int64(len(body)), Content: strings.NewReader(body)}, actorFor(owner))
	require.NoError(t, err)
	return outcome
}

func TestFileServiceUploadCreatesRecordAndBlob(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})

	outcome := uploadText(t, f, "owner-1", "notes.txt", "hello world")

	require.Equal(t, UploadCreated, outcome.Status)
	file := outcome.File
	assert.Equal(t, sha256Hex("hello world"), file.ContentHash)
	assert.Equal(t, int64(11), file.SizeBytes)
	assert.Equal(t, "txt", file.FileType)
	assert.True(t, strings.HasPrefix(file.MimeType, "text/plain"))
	assert.Equal(t, "uploads/owner-1/"+file.ID+".txt", file.StorageKey)
	assert.Equal(t, []string{file.StorageKey}, f.blobs.keysWithPrefix("uploads/"))
	assert.Equal(t, 1, f.repo.count())
}

func TestFileServiceUploadSpoolsNonSeekableInput(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})

	outcome, err := f.svc.Upload(context.Background(), UploadRequest{Filename: "stream.txt", Content: opaqueReader{strings.NewReader("streamed body")}}, actorFor("owner-1"))
	require.NoError(t, err)
	require.Equal(t, UploadCreated, outcome.Status)

	rc, err := f.blobs.Open(context.Background(), outcome.File.StorageKey)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "streamed body", string(data))
	assert.Equal(t, sha256Hex("streamed body"), outcome.File.ContentHash)
}

func TestFileServiceUploadDuplicateSameOwner(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	first := uploadText(t, f, "owner-1", "a.txt", "same bytes")

	second := uploadText(t, f, "owner-1", "b.txt", "same bytes")

	require.Equal(t, UploadDuplicate, second.Status)
	assert.Equal(t, first.File.ID, second.ExistingFileID)
	assert.Equal(t, first.File.ContentHash, second.ExistingHash)
	assert.Equal(t, 1, f.repo.count())
	assert.Len(t, f.blobs.keysWithPrefix("uploads/"), 1)

	conflict := appErrors.FromError(second.ConflictError())
	assert.Equal(t, appErrors.ErrDuplicateContent.Code, conflict.Code)
	assert.Equal(t, map[string]string{"content_hash": first.File.ContentHash, "existing_file_id": first.File.ID}, conflict.Details)
}

func TestFileServiceUploadDuplicateOtherOwnerHidesID(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	uploadText(t, f, "owner-1", "a.txt", "shared bytes")

	outcome := uploadText(t, f, "owner-2", "mine.txt", "shared bytes")

	require.Equal(t, UploadDuplicate, outcome.Status)
	assert.Empty(t, outcome.ExistingFileID)
	conflict := appErrors.FromError(outcome.ConflictError())
	assert.Equal(t, map[string]string{"content_hash": sha256Hex("shared bytes")}, conflict.Details)
}

func TestFileServiceConcurrentIdenticalUploadsCreateOnce(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	const workers = 12

	var wg sync.WaitGroup
	outcomes := make([]*UploadOutcome, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.Upload(context.Background(), UploadRequest{
				Filename: "race.txt",
				Content:  opaqueReader{strings.NewReader("racing content")},
			}, actorFor("owner-1"))
		}(i)
	}
	wg.Wait()

	created, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i].Status {
		case UploadCreated:
			created++
		case UploadDuplicate:
			duplicates++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)
	assert.Equal(t, 1, f.repo.count())
	assert.Len(t, f.blobs.keysWithPrefix("uploads/"), 1)
}

func TestFileServiceUploadCompensatesWhenBlobWriteFails(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	f.blobs.saveErr = errors.New("disk full")

	_, err := f.svc.Upload(context.Background(), UploadRequest{Filename: "a.txt", Content: strings.NewReader("payload")}, actorFor("owner-1"))

	require.ErrorIs(t, err, appErrors.ErrStorage)
	assert.True(t, appErrors.FromError(err).Retryable())
	assert.Equal(t, 0, f.repo.count())

	f.blobs.saveErr = nil
	outcome := uploadText(t, f, "owner-1", "a.txt", "payload")
	assert.Equal(t, UploadCreated, outcome.Status)
}

func TestFileServiceUploadValidation(t *testing.T) {
	f := newFileFixture(FileServiceConfig{MaxFileSize: 8})
	ctx := context.Background()
	actor := actorFor("owner-1")

	_, err := f.svc.Upload(ctx, UploadRequest{Filename: "", Content: strings.NewReader("x")}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: "run.exe", Content: strings.NewReader("x")}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: strings.Repeat("a", 256) + ".txt", Content: strings.NewReader("x")}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: "big.txt", DeclaredSize: 9, Content: strings.NewReader("x")}, actor)
	require.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: "lying.txt", DeclaredSize: 1, Content: strings.NewReader("more than eight bytes")}, actor)
	require.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: "empty.txt", Content: strings.NewReader("")}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Upload(ctx, UploadRequest{Filename: "a.txt", Content: strings.NewReader("x")}, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	assert.Equal(t, 0, f.repo.count())
	assert.Empty(t, f.blobs.keysWithPrefix(""))
}

func TestFileServiceUploadStripsClientPath(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})

	outcome := uploadText(t, f, "owner-1", `C:\Users\me\report.txt`, "windows path")

	assert.Equal(t, "report.txt", outcome.File.OriginalFilename)
}

func TestFileServiceGetRecordsAccess(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	created := uploadText(t, f, "owner-1", "a.txt", "viewed")

	file, err := f.svc.Get(context.Background(), created.File.ID, actorFor("owner-1"), AccessMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, 1, file.ViewCount)
	require.Len(t, f.access.entries, 1)
	assert.Equal(t, models.FileAccessView, f.access.entries[0].AccessType)

	_, err = f.svc.Get(context.Background(), created.File.ID, actorFor("owner-2"), AccessMeta{})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "not-a-uuid", actorFor("owner-1"), AccessMeta{})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFileServiceDeleteRemovesRowAndBlob(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	created := uploadText(t, f, "owner-1", "a.txt", "to delete")
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Delete(ctx, created.File.ID, actorFor("owner-2")), appErrors.ErrNotFound)
	require.NoError(t, f.svc.Delete(ctx, created.File.ID, actorFor("owner-1")))
	assert.Equal(t, 0, f.repo.count())
	assert.Empty(t, f.blobs.keysWithPrefix("uploads/"))

	require.ErrorIs(t, f.svc.Delete(ctx, created.File.ID, actorFor("owner-1")), appErrors.ErrNotFound)
	_, err := f.svc.Download(ctx, created.File.ID, actorFor("owner-1"), AccessMeta{})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	outcome := uploadText(t, f, "owner-1", "again.txt", "to delete")
	assert.Equal(t, UploadCreated, outcome.Status)
}

func TestFileServiceBulkDeleteReportsPerID(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	a := uploadText(t, f, "owner-1", "a.txt", "first")
	b := uploadText(t, f, "owner-2", "b.txt", "second")

	results, err := f.svc.BulkDelete(context.Background(), []string{a.File.ID, b.File.ID, "garbage", a.File.ID}, actorFor("owner-1"))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, BulkDeleteResult{ID: a.File.ID, Status: BulkDeleteDeleted}, results[0])
	assert.Equal(t, BulkDeleteResult{ID: b.File.ID, Status: BulkDeleteNotFound}, results[1])
	assert.Equal(t, BulkDeleteResult{ID: "garbage", Status: BulkDeleteNotFound}, results[2])
	assert.Equal(t, 1, f.repo.count())

	_, err = f.svc.BulkDelete(context.Background(), nil, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "ids must not be empty", appErrors.FromError(err).Message)
	_, err = f.svc.BulkDelete(context.Background(), make([]string, 101), actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, "at most 100 ids per request", appErrors.FromError(err).Message)
}

func TestFileServiceDownloadStreamsAttachment(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	created := uploadText(t, f, "owner-1", "report final.txt", "download me")

	content, err := f.svc.Download(context.Background(), created.File.ID, actorFor("owner-1"), AccessMeta{})
	require.NoError(t, err)
	defer content.Body.Close()

	data, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, "download me", string(data))
	assert.Equal(t, int64(11), content.Size)
	assert.Equal(t, `attachment; filename="report final.txt"`, content.Disposition())
	assert.Equal(t, models.FileAccessDownload, f.access.entries[0].AccessType)
}

func TestFileServicePreview(t *testing.T) {
	f := newFileFixture(FileServiceConfig{PreviewMaxTextChars: 5, PreviewMaxSize: 64})
	ctx := context.Background()
	actor := actorFor("owner-1")

	text := uploadText(t, f, "owner-1", "long.txt", "abcdefghij")
	content, err := f.svc.Preview(ctx, text.File.ID, actor, AccessMeta{})
	require.NoError(t, err)
	data, _ := io.ReadAll(content.Body)
	assert.Equal(t, "abcde", string(data))
	assert.True(t, content.Truncated)
	assert.True(t, content.Inline)
	assert.Equal(t, "text/plain; charset=utf-8", content.ContentType)

	binary, err := f.svc.Upload(ctx, UploadRequest{Filename: "blob.bin", Content: bytes.NewReader([]byte{0x00, 0x01, 0x02, 0xff, 0xfe})}, actor)
	require.NoError(t, err)
	_, err = f.svc.Preview(ctx, binary.File.ID, actor, AccessMeta{})
	require.ErrorIs(t, err, appErrors.ErrUnsupportedMedia)

	big := uploadText(t, f, "owner-1", "big.txt", strings.Repeat("z", 65))
	_, err = f.svc.Preview(ctx, big.File.ID, actor, AccessMeta{})
	require.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)
}

func TestFileServiceUpdateDescriptionInvalidatesCache(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	created := uploadText(t, f, "owner-1", "a.txt", "describe me")
	ctx := context.Background()
	key := listCachePattern("owner-1")
	key = strings.TrimSuffix(key, "*") + "page"
	require.NoError(t, f.cache.Set(ctx, key, map[string]string{"cached": "yes"}, time.Minute))

	updated, err := f.svc.UpdateDescription(ctx, created.File.ID, "  quarterly numbers ", actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", updated.Description)

	var dest map[string]string
	hit, err := f.cache.Get(ctx, key, &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	_, err = f.svc.UpdateDescription(ctx, created.File.ID, "x", actorFor("owner-2"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFileServiceStatsAndExport(t *testing.T) {
	f := newFileFixture(FileServiceConfig{})
	uploadText(t, f, "owner-1", "a.txt", "0123456789")
	uploadText(t, f, "owner-1", "b.txt", "abc")
	uploadText(t, f, "owner-1", "c.csv", "x,y")
	uploadText(t, f, "owner-2", "d.txt", "not mine")

	stats, err := f.svc.Stats(context.Background(), actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalFiles)
	assert.Equal(t, int64(16), stats.TotalBytes)
	assert.Equal(t, "16 B", stats.TotalSizeDisplay)
	assert.Equal(t, int64(3), stats.RecentUploads)

	exported, err := f.svc.ExportStats(context.Background(), actorFor("owner-1"), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", strings.SplitN(exported.ContentType, ";", 2)[0])
	assert.True(t, strings.HasSuffix(exported.Filename, ".csv"))
	body := string(exported.Data)
	assert.Contains(t, body, "total_files,3\n")
	assert.Contains(t, body, "csv,1,3\n")
	assert.Contains(t, body, "txt,2,13\n")

	_, err = f.svc.ExportStats(context.Background(), actorFor("owner-1"), "xml")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
