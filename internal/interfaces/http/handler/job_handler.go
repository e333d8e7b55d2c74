package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// JobManager submits, inspects and controls sync jobs
type JobManager interface {
	Submit(ctx context.Context, req integrationapp.SubmitJobRequest) (*integration.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*integrationapp.JobResponse, error)
	ListJobs(ctx context.Context, filter integration.JobFilter) ([]integrationapp.JobResponse, int64, error)
	GetItems(ctx context.Context, jobID uuid.UUID) ([]integrationapp.JobItemResponse, error)
	GetLogs(ctx context.Context, jobID uuid.UUID, limit int) ([]integrationapp.SyncLogResponse, error)
	RetryJob(ctx context.Context, id uuid.UUID) (*integration.Job, error)
	CancelJob(ctx context.Context, id uuid.UUID) (*integration.Job, error)
}

// JobHandler handles the sync job API
type JobHandler struct {
	BaseHandler
	jobs JobManager
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs JobManager) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// SubmitJobItemRequest is one item of a submitted job
type SubmitJobItemRequest struct {
	ItemType string         `json:"itemType" binding:"required,oneof=product order stock price"`
	ItemID   string         `json:"itemId" binding:"required,max=128"`
	Metadata map[string]any `json:"metadata"`
}

// SubmitJobOptions tunes a submitted job
type SubmitJobOptions struct {
	MaxAttempts int `json:"maxAttempts" binding:"omitempty,min=1,max=10"`
}

// SubmitJobRequest is the body of POST /sync/jobs
type SubmitJobRequest struct {
	Type             string                 `json:"type" binding:"required,oneof=pull push sync"`
	Channel          string                 `json:"channel" binding:"required"`
	ChannelAccountID *uuid.UUID             `json:"channelAccountId"`
	Items            []SubmitJobItemRequest `json:"items" binding:"required,min=1,max=1000,dive"`
	Metadata         map[string]any         `json:"metadata"`
	Options          *SubmitJobOptions      `json:"options"`
}

// ListJobsQuery is the query string of GET /sync/jobs
type ListJobsQuery struct {
	Status           string `form:"status" binding:"omitempty,oneof=pending running completed failed cancelled"`
	Channel          string `form:"channel"`
	ChannelAccountID string `form:"channelAccountId" binding:"omitempty,uuid"`
	Page             int    `form:"page" binding:"omitempty,min=1"`
	PageSize         int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	SortBy           string `form:"sortBy"`
	SortOrder        string `form:"sortOrder" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// SubmitJob godoc
//
//	@ID				submitSyncJob
//	@Summary		Submit a sync job
//	@Tags			sync-jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitJobRequest	true	"Job"
//	@Success		201		{object}	SubmitJobResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse	"Channel account not found"
//	@Failure		422		{object}	ErrorResponse	"Channel account inactive"
//	@Router			/sync/jobs [post]
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	channel, err := integration.ParsePlatformCode(req.Channel)
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "channel", Message: "Unsupported channel"}})
		return
	}

	specs := make([]integration.JobItemSpec, 0, len(req.Items))
	for _, item := range req.Items {
		specs = append(specs, integration.JobItemSpec{
			ItemType: integration.ItemType(item.ItemType),
			ItemID:   item.ItemID,
			Metadata: item.Metadata,
		})
	}

	submit := integrationapp.SubmitJobRequest{
		Type:             integration.JobType(req.Type),
		Channel:          channel,
		ChannelAccountID: req.ChannelAccountID,
		Items:            specs,
		Metadata:         req.Metadata,
	}
	if req.Options != nil {
		submit.MaxAttempts = req.Options.MaxAttempts
	}

	job, err := h.jobs.Submit(c.Request.Context(), submit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitJobResponse{Success: true, JobID: job.ID})
}

// ListJobs godoc
//
//	@ID				listSyncJobs
//	@Summary		List sync jobs
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			status				query		string	false	"pending, running, completed, failed or cancelled"
//	@Param			channel				query		string	false	"Platform code"
//	@Param			channelAccountId	query		string	false	"Channel account ID"
//	@Param			page				query		int		false	"Page number"	default(1)
//	@Param			pageSize			query		int		false	"Page size"		default(20)
//	@Param			sortBy				query		string	false	"Sort column"	default(created_at)
//	@Param			sortOrder			query		string	false	"asc or desc"	default(desc)
//	@Success		200					{object}	APIResponse[[]integrationapp.JobResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Router			/sync/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	var q ListJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = dto.DefaultPageSize
	}

	filter := integration.JobFilter{
		Status:    integration.JobStatus(q.Status),
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Channel != "" {
		channel, err := integration.ParsePlatformCode(q.Channel)
		if err != nil {
			h.ValidationError(c, []dto.ValidationDetail{{Field: "channel", Message: "Unsupported channel"}})
			return
		}
		filter.Channel = channel
	}
	if q.ChannelAccountID != "" {
		id := uuid.MustParse(q.ChannelAccountID)
		filter.ChannelAccountID = &id
	}

	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, jobs, total, q.Page, q.PageSize)
}

// GetJob godoc
//
//	@ID				getSyncJob
//	@Summary		Get a sync job with item status counts
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	APIResponse[integrationapp.JobResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/sync/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, job)
}

// GetJobItems godoc
//
//	@ID				getSyncJobItems
//	@Summary		List the items of a sync job
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	APIResponse[[]integrationapp.JobItemResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/sync/jobs/{id}/items [get]
func (h *JobHandler) GetJobItems(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.jobs.GetItems(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, items)
}

// GetJobLogs godoc
//
//	@ID				getSyncJobLogs
//	@Summary		List the sync log of a job
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			id		path		string	true	"Job ID"
//	@Param			limit	query		int		false	"Maximum entries"	default(200)
//	@Success		200		{object}	APIResponse[[]integrationapp.SyncLogResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Router			/sync/jobs/{id}/logs [get]
func (h *JobHandler) GetJobLogs(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	logs, err := h.jobs.GetLogs(c.Request.Context(), id, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, logs)
}

// RetryJob godoc
//
//	@ID				retrySyncJob
//	@Summary		Retry the failed items of a job
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	APIResponse[integrationapp.JobResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Job has no failed items"
//	@Router			/sync/jobs/{id}/retry [post]
func (h *JobHandler) RetryJob(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.RetryJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, integrationapp.ToJobResponse(job))
}

// CancelJob godoc
//
//	@ID				cancelSyncJob
//	@Summary		Cancel a pending job
//	@Tags			sync-jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"
//	@Success		200	{object}	APIResponse[integrationapp.JobResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse	"Job is not pending"
//	@Router			/sync/jobs/{id}/cancel [post]
func (h *JobHandler) CancelJob(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.CancelJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, integrationapp.ToJobResponse(job))
}
