package workers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/internal/service"
)

type mockStore struct {
	record    *models.Record
	getErr    error
	updateErr error
	stored    []float32
}

func (m *mockStore) GetByID(context.Context, models.RecordKind, uuid.UUID) (*models.Record, error) {
	return m.record, m.getErr
}

func (m *mockStore) UpdateEmbedding(_ context.Context, _ models.RecordKind, _ uuid.UUID, embedding []float32) error {
	if m.updateErr != nil {
		return m.updateErr
	}

	m.stored = embedding

	return nil
}

type mockEmbedder struct {
	vec   []float32
	texts []string
}

func (m *mockEmbedder) Generate(_ context.Context, text string) ([]float32, bool) {
	m.texts = append(m.texts, text)

	return m.vec, m.vec != nil
}

func ptrString(s string) *string { return &s }

func newJob(attempt, maxAttempts int) *river.Job[service.RecordEmbeddingArgs] {
	return &river.Job[service.RecordEmbeddingArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: maxAttempts},
		Args: service.RecordEmbeddingArgs{
			RecordKind: models.RecordKindRisk,
			RecordID:   uuid.Must(uuid.NewV7()),
		},
	}
}

func TestRecordEmbeddingWorker_Work(t *testing.T) {
	ctx := context.Background()
	phishing := &models.Record{Title: "Phishing", Description: ptrString("Credential theft via email")}

	t.Run("stores the embedding of the normalized text", func(t *testing.T) {
		store := &mockStore{record: phishing}
		emb := &mockEmbedder{vec: []float32{0.6, 0.8}}
		w := NewRecordEmbeddingWorker(store, emb, nil)

		require.NoError(t, w.Work(ctx, newJob(1, 3)))
		assert.Equal(t, []float32{0.6, 0.8}, store.stored)
		assert.Equal(t, []string{"phishing\n\ncredential theft via email"}, emb.texts)
	})

	t.Run("deleted record completes without retry", func(t *testing.T) {
		store := &mockStore{getErr: apperrors.NewNotFoundError("risk", "risk not found")}
		emb := &mockEmbedder{vec: []float32{1}}
		w := NewRecordEmbeddingWorker(store, emb, nil)

		require.NoError(t, w.Work(ctx, newJob(1, 3)))
		assert.Empty(t, emb.texts)
	})

	t.Run("database error retries", func(t *testing.T) {
		store := &mockStore{getErr: errors.New("connection refused")}
		w := NewRecordEmbeddingWorker(store, &mockEmbedder{}, nil)

		require.Error(t, w.Work(ctx, newJob(1, 3)))
	})

	t.Run("blank record is skipped", func(t *testing.T) {
		store := &mockStore{record: &models.Record{Title: "   "}}
		emb := &mockEmbedder{vec: []float32{1}}
		w := NewRecordEmbeddingWorker(store, emb, nil)

		require.NoError(t, w.Work(ctx, newJob(1, 3)))
		assert.Empty(t, emb.texts)
		assert.Nil(t, store.stored)
	})

	t.Run("provider failure retries before the last attempt", func(t *testing.T) {
		w := NewRecordEmbeddingWorker(&mockStore{record: phishing}, &mockEmbedder{}, nil)

		err := w.Work(ctx, newJob(1, 3))
		require.ErrorIs(t, err, errEmbeddingUnavailable)
	})

	t.Run("provider failure on the last attempt is not retried", func(t *testing.T) {
		w := NewRecordEmbeddingWorker(&mockStore{record: phishing}, &mockEmbedder{}, nil)

		require.NoError(t, w.Work(ctx, newJob(3, 3)))
	})

	t.Run("record deleted before store", func(t *testing.T) {
		store := &mockStore{record: phishing, updateErr: apperrors.NewNotFoundError("risk", "risk not found")}
		w := NewRecordEmbeddingWorker(store, &mockEmbedder{vec: []float32{1}}, nil)

		require.NoError(t, w.Work(ctx, newJob(1, 3)))
	})

	t.Run("store failure retries", func(t *testing.T) {
		store := &mockStore{record: phishing, updateErr: errors.New("deadlock detected")}
		w := NewRecordEmbeddingWorker(store, &mockEmbedder{vec: []float32{1}}, nil)

		require.Error(t, w.Work(ctx, newJob(1, 3)))
	})
}

func TestErrorHandler_LogsAndKeepsDefaultRetry(t *testing.T) {
	var buf bytes.Buffer

	h := &ErrorHandler{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	job := &rivertype.JobRow{ID: 7, Kind: "record_embedding", Attempt: 2, MaxAttempts: 3}

	assert.Nil(t, h.HandleError(context.Background(), job, errors.New("boom")))
	assert.Nil(t, h.HandlePanic(context.Background(), job, "bad state", "trace"))

	out := buf.String()
	assert.Contains(t, out, "jobs: job failed")
	assert.Contains(t, out, "jobs: job panicked")
	assert.Contains(t, out, "job_id=7")
}
