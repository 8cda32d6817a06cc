package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/apperrors"
	"github.com/formbricks/riskmatch/internal/models"
)

func TestTableFor(t *testing.T) {
	table, err := tableFor(models.RecordKindRisk)
	require.NoError(t, err)
	assert.Equal(t, "risks", table)

	table, err = tableFor(models.RecordKindControl)
	require.NoError(t, err)
	assert.Equal(t, "controls", table)

	_, err = tableFor("risks; DROP TABLE risks")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBuildPageQuery(t *testing.T) {
	t.Run("first page of missing embeddings", func(t *testing.T) {
		query, args := buildPageQuery("risks", nil, 100, true)

		assert.Contains(t, query, "FROM risks WHERE embedding IS NULL ORDER BY id LIMIT $1")
		assert.Equal(t, []any{100}, args)
	})

	t.Run("next page of missing embeddings", func(t *testing.T) {
		after := uuid.MustParse("0190d8a2-0000-7000-8000-000000000001")

		query, args := buildPageQuery("controls", &after, 50, true)

		assert.Contains(t, query, "FROM controls WHERE embedding IS NULL AND id > $1 ORDER BY id LIMIT $2")
		assert.Equal(t, []any{after, 50}, args)
	})

	t.Run("forced run pages every record", func(t *testing.T) {
		after := uuid.MustParse("0190d8a2-0000-7000-8000-000000000001")

		query, args := buildPageQuery("risks", &after, 10, false)

		assert.NotContains(t, query, "embedding IS NULL")
		assert.Contains(t, query, "WHERE id > $1 ORDER BY id LIMIT $2")
		assert.Equal(t, []any{after, 10}, args)
	})

	t.Run("forced first page has no filter", func(t *testing.T) {
		query, args := buildPageQuery("risks", nil, 10, false)

		assert.NotContains(t, query, "WHERE")
		assert.Equal(t, []any{10}, args)
	})
}

func TestNullableEmbedding_Scan(t *testing.T) {
	t.Run("null", func(t *testing.T) {
		n := nullableEmbedding{1}
		require.NoError(t, n.Scan(nil))
		assert.Nil(t, n)
	})

	t.Run("empty buffer", func(t *testing.T) {
		var n nullableEmbedding
		require.NoError(t, n.Scan([]byte{}))
		assert.Nil(t, n)
	})

	t.Run("binary vector", func(t *testing.T) {
		buf, err := pgvector.NewVector([]float32{0.5, -1, 2}).EncodeBinary(nil)
		require.NoError(t, err)

		var n nullableEmbedding
		require.NoError(t, n.Scan(buf))
		assert.Equal(t, nullableEmbedding{0.5, -1, 2}, n)
	})

	t.Run("wrong type", func(t *testing.T) {
		var n nullableEmbedding
		require.ErrorIs(t, n.Scan("[1,2]"), errEmbeddingScanInvalidType)
	})
}
