package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) last() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type fakeImports struct {
	mu        sync.Mutex
	submitted [][]byte
	meta      map[string]string
	jobs      map[string]*entity.Job
	events    chan entity.JobEvent
}

func newFakeImports() *fakeImports {
	return &fakeImports{jobs: make(map[string]*entity.Job), events: make(chan entity.JobEvent, 8)}
}

func (f *fakeImports) SubmitImport(ctx context.Context, raw []byte, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, raw)
	f.meta = metadata
	return "job-1", nil
}

func (f *fakeImports) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, apperror.ErrJobNotFound
}

func (f *fakeImports) ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, job := range f.jobs {
		if filter.Status == "" || job.Status == filter.Status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeImports) CancelJob(ctx context.Context, id string) (*entity.Job, error) {
	job, err := f.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.IsCancellable() {
		return nil, apperror.ErrNotCancellable
	}
	job.CancelRequested = true
	return job, nil
}

func (f *fakeImports) Subscribe(id string) (<-chan entity.JobEvent, func()) {
	return f.events, func() {}
}

func (f *fakeImports) ExportReport(ctx context.Context, id string) ([]byte, string, error) {
	if _, ok := f.jobs[id]; !ok {
		return nil, "", apperror.ErrJobNotFound
	}
	return []byte("xlsx"), "import_" + id + ".xlsx", nil
}

func (f *fakeImports) CheckStorage(ctx context.Context) (entity.StorageSize, entity.StorageStatus, error) {
	return entity.StorageSize{Bytes: 450 << 20, LimitBytes: 500 << 20, PercentOfLimit: 90}, entity.StorageWarning, nil
}

const adminID = 42

func command(chatID int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "admin"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func newTestHandler() (*BotHandler, *fakeSender, *fakeImports) {
	s := &fakeSender{}
	imp := newFakeImports()
	h := newHandler(s, []int64{adminID}, imp)
	h.download = func(fileID string) ([]byte, error) { return []byte("<offer/>"), nil }
	return h, s, imp
}

func TestHandler_NonAdminIgnored(t *testing.T) {
	h, s, imp := newTestHandler()
	ctx := context.Background()

	h.handleMessage(ctx, command(7, "/jobs"))
	assert.Empty(t, s.texts())

	h.handleMessage(ctx, command(7, "/start"))
	assert.Contains(t, s.last(), "7")

	msg := command(7, "")
	msg.Entities = nil
	msg.Document = &tgbotapi.Document{FileID: "f", FileName: "feed.xml"}
	h.handleMessage(ctx, msg)
	assert.Empty(t, imp.submitted)
}

func TestHandler_DocumentSubmitsImport(t *testing.T) {
	h, s, imp := newTestHandler()
	msg := &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: adminID},
		From:     &tgbotapi.User{ID: adminID, UserName: "admin"},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "Feed.XML", FileSize: 100},
	}

	h.handleMessage(context.Background(), msg)

	require.Len(t, imp.submitted, 1)
	assert.Equal(t, []byte("<offer/>"), imp.submitted[0])
	assert.Equal(t, "Feed.XML", imp.meta["file"])
	assert.Contains(t, s.texts()[0], "job-1")

	imp.events <- entity.JobEvent{Type: entity.EventJobUpdated, Job: &entity.Job{ID: "job-1", Status: entity.JobProcessing, Progress: 60, Stage: "persist:variants"}}
	imp.events <- entity.JobEvent{Type: entity.EventJobUpdated, Job: &entity.Job{ID: "job-1", Status: entity.JobCompleted, Progress: 100}}
	close(imp.events)

	assert.Eventually(t, func() bool {
		return len(s.texts()) == 3
	}, time.Second, 10*time.Millisecond)
	texts := s.texts()
	assert.Contains(t, texts[1], "60%")
	assert.Contains(t, texts[2], "completed")
}

func TestHandler_DocumentRejected(t *testing.T) {
	h, s, imp := newTestHandler()
	for _, doc := range []*tgbotapi.Document{
		{FileID: "a", FileName: "feed.xlsx", FileSize: 10},
		{FileID: "b", FileName: "feed.xml", FileSize: MaxFeedSize + 1},
	} {
		h.handleMessage(context.Background(), &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: adminID},
			From:     &tgbotapi.User{ID: adminID},
			Document: doc,
		})
	}
	assert.Empty(t, imp.submitted)
	assert.Len(t, s.texts(), 2)
}

func TestHandler_DownloadFailure(t *testing.T) {
	h, s, imp := newTestHandler()
	h.download = func(string) ([]byte, error) { return nil, errors.New("timeout") }
	h.handleMessage(context.Background(), &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: adminID},
		From:     &tgbotapi.User{ID: adminID},
		Document: &tgbotapi.Document{FileID: "a", FileName: "feed.xml"},
	})
	assert.Empty(t, imp.submitted)
	assert.Contains(t, s.last(), "xatolik")
}

func TestHandler_Commands(t *testing.T) {
	h, s, imp := newTestHandler()
	ctx := context.Background()
	imp.jobs["j1"] = &entity.Job{
		ID:          "j1",
		Status:      entity.JobCompleted,
		Progress:    100,
		ErrorsTotal: 2,
		Result:      entity.NewImportStats(),
	}
	imp.jobs["j1"].Result.For(entity.KindProduct).Created = 3
	imp.jobs["j2"] = &entity.Job{ID: "j2", Status: entity.JobProcessing, Progress: 40}

	h.handleMessage(ctx, command(adminID, "/status j1"))
	assert.Contains(t, s.last(), "completed (100%)")
	assert.Contains(t, s.last(), "products: +3")
	assert.Contains(t, s.last(), "/report j1")

	h.handleMessage(ctx, command(adminID, "/status nope"))
	assert.Contains(t, s.last(), "topilmadi")

	h.handleMessage(ctx, command(adminID, "/status"))
	assert.Contains(t, s.last(), "Job ID")

	h.handleMessage(ctx, command(adminID, "/jobs processing"))
	assert.Contains(t, s.last(), "j2")
	assert.NotContains(t, s.last(), "j1")

	h.handleMessage(ctx, command(adminID, "/cancel j2"))
	assert.Contains(t, s.last(), "bekor qilinmoqda")
	assert.True(t, imp.jobs["j2"].CancelRequested)

	h.handleMessage(ctx, command(adminID, "/cancel j1"))
	assert.Contains(t, s.last(), "yakunlangan")

	h.handleMessage(ctx, command(adminID, "/storage"))
	assert.Contains(t, s.last(), "90.0%")
	assert.Contains(t, s.last(), "warning")

	h.handleMessage(ctx, command(adminID, "/report j1"))
	require.NotEmpty(t, s.sent)
	doc, ok := s.sent[len(s.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(adminID), doc.ChatID)

	h.handleMessage(ctx, command(adminID, "/whatever"))
	assert.Contains(t, s.last(), "Noma'lum")
}

func TestFormatJob_Failed(t *testing.T) {
	out := formatJob(&entity.Job{
		ID:       "j",
		Status:   entity.JobFailed,
		Progress: 5,
		Error:    "storage_critical",
		Metadata: map[string]string{"file": "feed.xml"},
		Storage:  &entity.GuardResult{Status: entity.StorageCritical, CleanupPerformed: true},
	})
	assert.Contains(t, out, "failed (5%)")
	assert.Contains(t, out, "feed.xml")
	assert.Contains(t, out, "critical")
	assert.Contains(t, out, "Xato: storage_critical")
}

func TestFormatJob_SparseResultIsNotMutated(t *testing.T) {
	res := &entity.ImportStats{Kinds: map[entity.Kind]*entity.KindStats{
		entity.KindProduct: {Created: 2, Updated: 1},
	}}
	out := formatJob(&entity.Job{ID: "j", Status: entity.JobCompleted, Progress: 100, Result: res})

	assert.Contains(t, out, "products: +2 ~1 skip 0 err 0")
	assert.NotContains(t, out, "variants")
	assert.Len(t, res.Kinds, 1)
}
