package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/app"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/db/repository"
	"github.com/inferbench/bench-server/internal/types"
)

type ResultResponse struct {
	ID        string `json:"id"`
	Identity  string `json:"identity"`
	Path      string `json:"path"`
	ModelID   string `json:"modelId"`
	Task      string `json:"task"`
	Platform  string `json:"platform"`
	Mode      string `json:"mode"`
	Device    string `json:"device"`
	Browser   string `json:"browser,omitempty"`
	DType     string `json:"dtype,omitempty"`
	Headed    bool   `json:"headed,omitempty"`
	Repeats   int    `json:"repeats"`
	BatchSize int    `json:"batchSize"`

	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	LoadP50       float64 `json:"loadP50,omitempty"`
	LoadP90       float64 `json:"loadP90,omitempty"`
	FirstInferP50 float64 `json:"firstInferP50,omitempty"`
	FirstInferP90 float64 `json:"firstInferP90,omitempty"`
	SubseqP50     float64 `json:"subseqP50,omitempty"`
	SubseqP90     float64 `json:"subseqP90,omitempty"`

	Record *types.ResultRecord `json:"record,omitempty"`

	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func ListResultsHandler(c *gin.Context) {
	filter := repository.ResultFilter{
		ModelID:  c.Query("model"),
		Task:     c.Query("task"),
		Platform: c.Query("platform"),
		Mode:     c.Query("mode"),
		Device:   c.Query("device"),
		DType:    c.Query("dtype"),
		Status:   c.Query("status"),
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	app := c.MustGet("app").(*app.App)
	rows, err := app.ResultRepository.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	full := c.Query("full") == "true"
	responses := make([]ResultResponse, 0, len(rows))
	for i := range rows {
		responses = append(responses, toResultResponse(app, &rows[i], full))
	}

	c.JSON(http.StatusOK, gin.H{"data": responses})
}

func toResultResponse(app *app.App, row *models.Result, full bool) ResultResponse {
	resp := ResultResponse{
		ID:        row.ID.String(),
		Identity:  row.Identity,
		Path:      row.Path,
		ModelID:   row.ModelID,
		Task:      row.Task,
		Platform:  row.Platform,
		Mode:      row.Mode,
		Device:    row.Device,
		Browser:   row.Browser,
		DType:     row.DType,
		Headed:    row.Headed,
		Repeats:   row.Repeats,
		BatchSize: row.BatchSize,

		Status: row.Status,
		Error:  row.Error,

		LoadP50:       row.LoadP50,
		LoadP90:       row.LoadP90,
		FirstInferP50: row.FirstInferP50,
		FirstInferP90: row.FirstInferP90,
		SubseqP50:     row.SubseqP50,
		SubseqP90:     row.SubseqP90,
	}

	if !row.CreatedAt.IsZero() {
		t := row.CreatedAt.Time
		resp.CreatedAt = &t
	}
	if !row.CompletedAt.IsZero() {
		t := row.CompletedAt.Time
		resp.CompletedAt = &t
	}

	if full && len(row.Record) > 0 {
		rec, err := row.DecodeRecord()
		if err != nil {
			app.Logger.Warn("undecodable result record",
				zap.String("id", row.ID.String()), zap.Error(err))
		} else {
			resp.Record = rec
		}
	}

	return resp
}
