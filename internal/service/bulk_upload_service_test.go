package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-manager-api/internal/models"
	"github.com/noah-isme/file-manager-api/internal/repository"
	appErrors "github.com/noah-isme/file-manager-api/pkg/errors"
	"github.com/noah-isme/file-manager-api/pkg/jobs"
)

type mockBulkRepo struct {
	mu    sync.Mutex
	jobs  map[string]*models.BulkUploadJob
	items map[string][]models.BulkUploadItem
}

func newMockBulkRepo() *mockBulkRepo {
	return &mockBulkRepo{jobs: map[string]*models.BulkUploadJob{}, items: map[string][]models.BulkUploadItem{}}
}

func (m *mockBulkRepo) Create(ctx context.Context, job *models.BulkUploadJob, items []models.BulkUploadItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.TotalItems = len(items)
	for i := range items {
		items[i].JobID = job.ID
	}
	copied := *job
	m.jobs[job.ID] = &copied
	m.items[job.ID] = append([]models.BulkUploadItem(nil), items...)
	return nil
}

func (m *mockBulkRepo) GetJob(ctx context.Context, id string) (*models.BulkUploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockBulkRepo) ListItems(ctx context.Context, jobID string) ([]models.BulkUploadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BulkUploadItem(nil), m.items[jobID]...), nil
}

func (m *mockBulkRepo) UpdateJob(ctx context.Context, id string, params repository.UpdateBulkJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	if params.IncrementAttempt {
		job.Attempts++
	}
	return nil
}

func (m *mockBulkRepo) UpdateItem(ctx context.Context, item *models.BulkUploadItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[item.JobID]
	items[item.Position] = *item
	return nil
}

func (m *mockBulkRepo) FailPendingItems(ctx context.Context, jobID, code, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	items := m.items[jobID]
	for i := range items {
		if items[i].Status == models.BulkItemPending {
			items[i].Status = models.BulkItemFailed
			items[i].ErrorCode = &code
			items[i].ErrorMessage = &message
			n++
		}
	}
	return n, nil
}

func (m *mockBulkRepo) ListUnfinished(ctx context.Context, limit int) ([]models.BulkUploadJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BulkUploadJob
	for _, job := range m.jobs {
		if !job.Status.Terminal() {
			out = append(out, *job)
		}
	}
	return out, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type bulkFixture struct {
	*fileFixture
	bulkRepo *mockBulkRepo
	queue    *recordingQueue
	svc      *BulkUploadService
}

func newBulkFixture() *bulkFixture {
	files := newFileFixture(FileServiceConfig{})
	repo := newMockBulkRepo()
	queue := &recordingQueue{}
	svc := NewBulkUploadService(repo, files.repo, files.svc, files.blobs, queue, nil, nil, BulkUploadConfig{MaxFiles: 5})
	return &bulkFixture{fileFixture: files, bulkRepo: repo, queue: queue, svc: svc}
}

func textPart(name, body string) BulkFile {
	return BulkFile{
		Filename: name,
		Size:     int64(len(body)),
		MimeType: "text/plain",
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}

func itemStatuses(items []models.BulkUploadItem) []models.BulkItemStatus {
	out := make([]models.BulkItemStatus, len(items))
	for i, item := range items {
		out[i] = item.Status
	}
	return out
}

func TestBulkUploadSubmitAndProcess(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	actor := actorFor("owner-1")
	existing := uploadText(t, f.fileFixture, "owner-1", "old.txt", "already here")

	job, err := f.svc.Submit(ctx, []BulkFile{
		textPart("new.txt", "brand new"),
		textPart("copy.txt", "already here"),
		textPart("virus.exe", "nope"),
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.BulkUploadQueued, job.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, job.ID, f.queue.jobs[0].ID)
	assert.Len(t, f.blobs.keysWithPrefix("staging/"), 2)

	require.NoError(t, f.svc.Handle(ctx, f.queue.jobs[0]))

	report, err := f.svc.GetStatus(ctx, job.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.BulkUploadCompleted, report.Job.Status)
	assert.Equal(t, []models.BulkItemStatus{models.BulkItemCreated, models.BulkItemDuplicate, models.BulkItemFailed}, itemStatuses(report.Items))
	assert.Equal(t, models.BulkUploadSummary{Total: 3, Created: 1, Duplicates: 1, Failed: 1}, report.Summary)
	assert.Equal(t, appErrors.ErrDuplicateContent.Code, *report.Items[1].ErrorCode)
	assert.Contains(t, *report.Items[1].ErrorMessage, existing.File.ID)
	assert.Equal(t, appErrors.ErrValidation.Code, *report.Items[2].ErrorCode)

	created, err := f.repo.GetByID(ctx, report.Items[0].FileID)
	require.NoError(t, err)
	assert.Equal(t, "new.txt", created.OriginalFilename)
	assert.Empty(t, f.blobs.keysWithPrefix("staging/"))

	require.NoError(t, f.svc.Handle(ctx, f.queue.jobs[0]))
	assert.Equal(t, 2, f.repo.count())
}

func TestBulkUploadRetryAdoptsRecordFromEarlierAttempt(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	actor := actorFor("owner-1")

	job, err := f.svc.Submit(ctx, []BulkFile{textPart("a.txt", "retry me")}, actor)
	require.NoError(t, err)
	items, _ := f.bulkRepo.ListItems(ctx, job.ID)
	item := items[0]

	// An earlier attempt inserted the row under the preassigned id and died before writing the blob.
	_, err = f.svc.uploads.Upload(ctx, UploadRequest{Filename: "a.txt", Content: strings.NewReader("retry me"), FileID: item.FileID}, actor)
	require.NoError(t, err)
	record, _ := f.repo.GetByID(ctx, item.FileID)
	require.NoError(t, f.blobs.Delete(ctx, record.StorageKey))

	require.NoError(t, f.svc.Handle(ctx, jobs.Job{ID: job.ID}))

	report, err := f.svc.GetStatus(ctx, job.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, []models.BulkItemStatus{models.BulkItemCreated}, itemStatuses(report.Items))
	assert.Equal(t, 1, f.repo.count())
	exists, _ := f.blobs.Exists(ctx, record.StorageKey)
	assert.True(t, exists)
}

func TestBulkUploadInfrastructureFailureKeepsItemPendingThenExhausts(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	actor := actorFor("owner-1")
	f.blobs.saveErr = errors.New("bucket unavailable")

	job, err := f.svc.Submit(ctx, []BulkFile{textPart("a.txt", "will fail")}, actor)
	require.NoError(t, err)

	err = f.svc.Handle(ctx, jobs.Job{ID: job.ID})
	require.Error(t, err)
	items, _ := f.bulkRepo.ListItems(ctx, job.ID)
	assert.Equal(t, models.BulkItemPending, items[0].Status)
	assert.Equal(t, 0, f.repo.count())

	f.svc.OnExhausted(ctx, jobs.Job{ID: job.ID, Attempt: 4}, err)

	report, err := f.svc.GetStatus(ctx, job.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.BulkUploadFailed, report.Job.Status)
	assert.NotNil(t, report.Job.FinishedAt)
	assert.Equal(t, models.BulkUploadSummary{Total: 1, Failed: 1}, report.Summary)
	assert.Empty(t, f.blobs.keysWithPrefix("staging/"))
}

func TestBulkUploadSubmitValidation(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, nil, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	parts := make([]BulkFile, 6)
	for i := range parts {
		parts[i] = textPart("a.txt", "x")
	}
	_, err = f.svc.Submit(ctx, parts, actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrValidation)

	job, err := f.svc.Submit(ctx, []BulkFile{textPart("bad.exe", "x")}, actorFor("owner-1"))
	require.NoError(t, err)
	assert.Equal(t, models.BulkUploadCompleted, job.Status)
	assert.Empty(t, f.queue.jobs)
}

func TestBulkUploadStatusIsOwnerScoped(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	job, err := f.svc.Submit(ctx, []BulkFile{textPart("a.txt", "mine")}, actorFor("owner-1"))
	require.NoError(t, err)

	_, err = f.svc.GetStatus(ctx, job.ID, actorFor("owner-2"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.GetStatus(ctx, "nope", actorFor("owner-1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestBulkUploadRecoverPendingJobs(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, []BulkFile{textPart("a.txt", "one")}, actorFor("owner-1"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, []BulkFile{textPart("bad.exe", "two")}, actorFor("owner-1"))
	require.NoError(t, err)
	f.queue.jobs = nil

	assert.Equal(t, 1, f.svc.RecoverPendingJobs(ctx))
	assert.Len(t, f.queue.jobs, 1)
}

func TestBulkUploadCleanupStaging(t *testing.T) {
	f := newBulkFixture()
	ctx := context.Background()
	_, err := f.blobs.Save(ctx, "staging/job/0", strings.NewReader("stale"))
	require.NoError(t, err)
	_, err = f.blobs.Save(ctx, "uploads/owner/keep.txt", strings.NewReader("live"))
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.CleanupStaging(ctx))
	assert.Equal(t, []string{"uploads/owner/keep.txt"}, f.blobs.keysWithPrefix(""))
}

func TestBulkUploadWorksThroughQueue(t *testing.T) {
	f := newBulkFixture()
	queue := jobs.NewQueue("bulk-test", f.svc.Handle, jobs.QueueConfig{RetryDelay: time.Millisecond, OnExhausted: f.svc.OnExhausted})
	f.svc.SetQueue(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	job, err := f.svc.Submit(context.Background(), []BulkFile{textPart("a.txt", "queued"), textPart("b.txt", "also queued")}, actorFor("owner-1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		report, err := f.svc.GetStatus(context.Background(), job.ID, actorFor("owner-1"))
		return err == nil && report.Job.Status == models.BulkUploadCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.repo.count())
}
