package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/wavecrawl/internal/models"
)

type mockStore struct {
	mu sync.Mutex

	jobs    map[string]*models.PlaylistJob
	order   []string
	tracks  map[string][]models.MusicTrack
	records map[string]*models.PlaylistRecord

	listErr          error
	updateErr        error
	updateErrStatus  models.JobStatus // when set, updateErr only applies to this status
	replaceErr       error
	saveErr          error
	listCallCount    int
	updateCallCount  int
	replaceCallCount int
	saveCallCount    int
	onList           func()
}

func newMockStore(jobs ...*models.PlaylistJob) *mockStore {
	m := &mockStore{
		jobs:    map[string]*models.PlaylistJob{},
		tracks:  map[string][]models.MusicTrack{},
		records: map[string]*models.PlaylistRecord{},
	}
	for _, j := range jobs {
		m.jobs[j.ID] = j
		m.order = append(m.order, j.ID)
	}
	return m
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCallCount + m.updateCallCount + m.replaceCallCount + m.saveCallCount
}

func (m *mockStore) job(id string) models.PlaylistJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *mockStore) ListPending(ctx context.Context, maxRetries int) ([]models.PlaylistJob, error) {
	m.mu.Lock()
	m.listCallCount++
	hook := m.onList
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.PlaylistJob
	for _, id := range m.order {
		j := m.jobs[id]
		limit := j.MaxRetries
		if limit <= 0 {
			limit = maxRetries
		}
		if j.Status == models.StatusPending && j.RetryCount < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, jobID string, update models.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCallCount++
	if m.updateErr != nil && (m.updateErrStatus == "" || m.updateErrStatus == update.Status) {
		return m.updateErr
	}
	j := m.jobs[jobID]
	j.Status = update.Status
	if update.ErrorMessage != nil {
		j.ErrorMessage = *update.ErrorMessage
	}
	if update.RetryCount != nil {
		j.RetryCount = *update.RetryCount
	}
	return nil
}

func (m *mockStore) ReplaceTracks(ctx context.Context, jobID string, tracks []models.MusicTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCallCount++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.tracks[jobID] = append([]models.MusicTrack(nil), tracks...)
	return nil
}

func (m *mockStore) SaveResultRecord(ctx context.Context, bundle *models.ResultBundle, job models.PlaylistJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[job.ID] = models.NewPlaylistRecord(bundle, job)
	return nil
}

type mockScraper struct {
	mu        sync.Mutex
	results   map[string]*models.ResultBundle
	errs      map[string]error
	panicOn   string
	block     chan struct{}
	started   chan struct{}
	callCount int
}

func (m *mockScraper) Scrape(ctx context.Context, pageURL string) (*models.ResultBundle, error) {
	m.mu.Lock()
	m.callCount++
	block, started := m.block, m.started
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if pageURL == m.panicOn {
		panic("renderer crashed")
	}
	if err := m.errs[pageURL]; err != nil {
		return nil, err
	}
	return m.results[pageURL], nil
}

func bundleWithTracks(n int) *models.ResultBundle {
	b := &models.ResultBundle{
		Title:   "Station Mix",
		Channel: models.ChannelInfo{Name: "Station", Handle: "@station"},
	}
	for i := 1; i <= n; i++ {
		b.Tracks = append(b.Tracks, models.MusicTrack{
			TrackNumber: i,
			Timestamp:   "00:00",
			Artist:      "Artist",
			Title:       "Title",
			VideoType:   models.VideoTypeUnknown,
		})
	}
	return b
}

func pendingJob(id string, retryCount, maxRetries int) *models.PlaylistJob {
	return &models.PlaylistJob{
		ID:         id,
		URL:        "https://www.youtube.com/watch?v=" + id,
		Status:     models.StatusPending,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
		OwnerID:    "owner-" + id,
	}
}
