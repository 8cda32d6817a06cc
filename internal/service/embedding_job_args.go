package service

import (
	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/formbricks/riskmatch/internal/models"
)

const recordEmbeddingKind = "record_embedding"

// EmbeddingsQueueName is the River queue used for record embedding jobs.
const EmbeddingsQueueName = "embeddings"

// RecordEmbeddingArgs is the job payload for recomputing the embedding of one risk or control.
// Uniqueness is by (kind, record id) so repeated edits of the same record share one pending job.
type RecordEmbeddingArgs struct {
	RecordKind models.RecordKind `json:"record_kind" river:"unique"`
	RecordID   uuid.UUID         `json:"record_id"   river:"unique"`
}

// Kind returns the River job kind.
func (RecordEmbeddingArgs) Kind() string { return recordEmbeddingKind }

var _ river.JobArgs = RecordEmbeddingArgs{}
