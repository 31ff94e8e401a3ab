package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iteehub/itee_hub/internal/archive"
	"github.com/iteehub/itee_hub/internal/storage"
	"github.com/iteehub/itee_hub/internal/storage/sqlite"
	"github.com/iteehub/itee_hub/internal/telemetry"
)

type sentDocument struct {
	ChatID   string
	Caption  string
	FileName string
}

type fakeSender struct {
	sent    []sentDocument
	failFor map[string]bool
}

func (f *fakeSender) SendDocument(_ context.Context, chatID, caption, filePath string) error {
	name := filepath.Base(filePath)

	if f.failFor[name] {
		return errors.New("send failed")
	}

	f.sent = append(f.sent, sentDocument{ChatID: chatID, Caption: caption, FileName: name})

	return nil
}

func newTestDeliverer(t *testing.T, sender *fakeSender) (*Deliverer, storage.Repository, string) {
	t.Helper()

	db, err := sqlite.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dataDir := t.TempDir()

	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)

	repo := sqlite.NewArchiveRepository(db)

	return New(repo, sender, dataDir, 0, tel), repo, dataDir
}

func addQuestionFile(t *testing.T, repo storage.Repository, dataDir, year, name string, lastModified int64) string {
	t.Helper()

	dir := filepath.Join(dataDir, year, "questions")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("zip"), 0644))

	link := "https://itpec.org/pastexamqa/fe/" + name
	require.NoError(t, repo.AddFile(context.Background(), link, lastModified, year+" April Exam", "hash-"+name))

	return link
}

func TestDeliver_SendsOldestFirstAndRecords(t *testing.T) {
	sender := &fakeSender{}
	deliverer, repo, dataDir := newTestDeliverer(t, sender)
	ctx := context.Background()

	addQuestionFile(t, repo, dataDir, "2021", "2021a_fe.zip", 200)
	addQuestionFile(t, repo, dataDir, "2020", "2020a_fe.zip", 100)

	require.NoError(t, deliverer.Deliver(ctx, "chat-1"))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "2020a_fe.zip", sender.sent[0].FileName)
	assert.Equal(t, "2021a_fe.zip", sender.sent[1].FileName)
	assert.Equal(t, "chat-1", sender.sent[0].ChatID)

	// Everything was recorded: a second run has nothing to send.
	require.NoError(t, deliverer.Deliver(ctx, "chat-1"))
	assert.Len(t, sender.sent, 2)
}

func TestDeliver_FailedSendStaysPending(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"2020a_fe.zip": true}}
	deliverer, repo, dataDir := newTestDeliverer(t, sender)
	ctx := context.Background()

	addQuestionFile(t, repo, dataDir, "2020", "2020a_fe.zip", 100)
	addQuestionFile(t, repo, dataDir, "2021", "2021a_fe.zip", 200)

	require.NoError(t, deliverer.Deliver(ctx, "chat-1"))

	// The failing item does not block the next one.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "2021a_fe.zip", sender.sent[0].FileName)

	pending, err := repo.GetPending(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "hash-2020a_fe.zip", pending[0].ContentHash)

	// Once the send succeeds, the retry clears the backlog.
	sender.failFor = nil
	require.NoError(t, deliverer.Deliver(ctx, "chat-1"))

	pending, err = repo.GetPending(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeliver_MissingLocalFileSkipped(t *testing.T) {
	sender := &fakeSender{}
	deliverer, repo, dataDir := newTestDeliverer(t, sender)
	ctx := context.Background()

	// Record without a file on disk.
	require.NoError(t, repo.AddFile(ctx, "https://itpec.org/pastexamqa/fe/gone_2019.zip", 50, "2019 April Exam", "hash-gone"))
	addQuestionFile(t, repo, dataDir, "2021", "2021a_fe.zip", 200)

	require.NoError(t, deliverer.Deliver(ctx, "chat-1"))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "2021a_fe.zip", sender.sent[0].FileName)

	// The skipped record was not marked delivered.
	pending, err := repo.GetPending(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "hash-gone", pending[0].ContentHash)
}

func TestDeliver_NoPending(t *testing.T) {
	sender := &fakeSender{}
	deliverer, _, _ := newTestDeliverer(t, sender)

	require.NoError(t, deliverer.Deliver(context.Background(), "chat-1"))
	assert.Empty(t, sender.sent)
}

func TestBuildCaption_Question(t *testing.T) {
	info := archive.LinkInfo{
		Link:  "https://itpec.org/pastexamqa/fe/2021a_fe.zip",
		Type:  archive.TypeQuestion,
		Level: "fe",
		Year:  "2021",
	}
	record := storage.FileRecord{
		Link:         info.Link,
		LastModified: time.Date(2021, 4, 1, 12, 0, 0, 0, time.UTC).Unix(),
		PeriodLabel:  "2021 April Exam",
	}

	caption := buildCaption(info, record, "2021a_fe.zip")

	assert.Contains(t, caption, "<a href='https://itpec.org/pastexamqa/fe/2021a_fe.zip'>Question of FE 2021 April Exam</a>")
	assert.Contains(t, caption, "<b>last modified: </b>")
	assert.Contains(t, caption, "#FE")
	assert.Contains(t, caption, "#FE_2021")
	assert.Contains(t, caption, "#FE_2021a")
	assert.Contains(t, caption, "#question")
	assert.NotContains(t, caption, "'s")
}

func TestBuildCaption_ResultWithCountry(t *testing.T) {
	info := archive.LinkInfo{
		Link:    "https://itpec.org/all-passers-information/japan/FE2021_results.pdf",
		Type:    archive.TypeResult,
		Level:   "fe",
		Country: "japan",
		Year:    "2021",
	}
	record := storage.FileRecord{
		Link:         info.Link,
		LastModified: 1633046400,
		PeriodLabel:  "2021 October",
	}

	caption := buildCaption(info, record, "japan_FE2021_results.pdf")

	assert.Contains(t, caption, "Result of japan's FE 2021 October")
	assert.Contains(t, caption, "#japan")
	assert.Contains(t, caption, "#result")
}
