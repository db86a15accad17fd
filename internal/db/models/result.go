package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/inferbench/bench-server/internal/types"
)

// Result is one benchmark run. Unlike the file store, which keeps only the
// latest record per identity, every run gets its own row here.
type Result struct {
	bun.BaseModel `bun:"table:results"`

	ID       uuid.UUID `bun:",type:uuid,pk"`
	Identity string    `bun:",notnull"`
	Path     string    `bun:",notnull"`

	ModelID   string `bun:",notnull"`
	Task      string `bun:",notnull"`
	Platform  string `bun:",notnull"`
	Mode      string `bun:",notnull"`
	Device    string `bun:",notnull"`
	Browser   string `bun:",nullzero"`
	DType     string `bun:",nullzero"`
	Headed    bool   `bun:",notnull,default:false"`
	Repeats   int    `bun:",notnull"`
	BatchSize int    `bun:",notnull"`

	Status string `bun:",notnull"`
	Error  string `bun:",nullzero"`

	LoadP50       float64 `bun:",nullzero"`
	LoadP90       float64 `bun:",nullzero"`
	FirstInferP50 float64 `bun:",nullzero"`
	FirstInferP90 float64 `bun:",nullzero"`
	SubseqP50     float64 `bun:",nullzero"`
	SubseqP90     float64 `bun:",nullzero"`

	// Record is the full result object, msgpack-encoded.
	Record []byte `bun:",nullzero"`

	StartedAt   bun.NullTime `bun:",nullzero"`
	CompletedAt bun.NullTime `bun:",nullzero"`
	CreatedAt   bun.NullTime `bun:",nullzero,notnull,default:current_timestamp"`
}

// NewResult flattens a record into an indexed row, keeping the full object
// alongside as a msgpack blob.
func NewResult(rec types.ResultRecord, path string) (*Result, error) {
	blob, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, err
	}

	row := &Result{
		ID:        uuid.Must(uuid.NewRandom()),
		Identity:  rec.ID,
		Path:      path,
		ModelID:   rec.ModelID,
		Task:      rec.Task,
		Platform:  string(rec.Platform),
		Mode:      string(rec.Mode),
		Device:    string(rec.Device),
		Browser:   string(rec.Browser),
		DType:     rec.DType,
		Headed:    rec.Headed,
		Repeats:   rec.Repeats,
		BatchSize: rec.BatchSize,
		Status:    string(rec.Status),
		Error:     rec.Error,
		Record:    blob,
	}

	if rec.Metrics != nil {
		row.LoadP50 = rec.Metrics.LoadMS.P50
		row.LoadP90 = rec.Metrics.LoadMS.P90
		row.FirstInferP50 = rec.Metrics.FirstInferMS.P50
		row.FirstInferP90 = rec.Metrics.FirstInferMS.P90
		row.SubseqP50 = rec.Metrics.SubsequentInferMS.P50
		row.SubseqP90 = rec.Metrics.SubsequentInferMS.P90
	}

	if rec.StartedAt > 0 {
		row.StartedAt = bun.NullTime{Time: time.UnixMilli(rec.StartedAt)}
	}
	if rec.CompletedAt > 0 {
		row.CompletedAt = bun.NullTime{Time: time.UnixMilli(rec.CompletedAt)}
	}

	return row, nil
}

// DecodeRecord re-inflates the stored msgpack blob.
func (r *Result) DecodeRecord() (*types.ResultRecord, error) {
	var rec types.ResultRecord
	if err := msgpack.Unmarshal(r.Record, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}
