// Package handler exposes the automation engine over HTTP. Handlers stay
// thin: bind, validate, call the service, map the result.
package handler

import (
	"context"
	"net/http"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/engine/batch"
	"github.com/ganeshchavan786/vega-crm/internal/engine/conversion"
	"github.com/ganeshchavan786/vega-crm/internal/engine/dedupe"
	"github.com/ganeshchavan786/vega-crm/internal/engine/health"
	"github.com/ganeshchavan786/vega-crm/internal/engine/intake"
	"github.com/ganeshchavan786/vega-crm/internal/engine/nurturing"
	"github.com/ganeshchavan786/vega-crm/internal/engine/qualification"
	"github.com/ganeshchavan786/vega-crm/internal/engine/scoring"
	"github.com/ganeshchavan786/vega-crm/internal/engine/transport"
	"github.com/ganeshchavan786/vega-crm/internal/scheduler"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/httpkit"
	"github.com/ganeshchavan786/vega-crm/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler routes engine operations.
type Handler struct {
	intake        *intake.Service
	dedupe        *dedupe.Service
	scoring       *scoring.Service
	qualification *qualification.Service
	health        *health.Service
	conversion    *conversion.Service
	nurturing     *nurturing.Service
	batch         *batch.Service
	jobs          scheduler.Enqueuer
	batchCfg      config.BatchConfig
	val           *validator.Validator
}

// New creates the engine handler.
func New(
	intakeSvc *intake.Service,
	dedupeSvc *dedupe.Service,
	scoringSvc *scoring.Service,
	qualificationSvc *qualification.Service,
	healthSvc *health.Service,
	conversionSvc *conversion.Service,
	nurturingSvc *nurturing.Service,
	batchSvc *batch.Service,
	jobs scheduler.Enqueuer,
	batchCfg config.BatchConfig,
	val *validator.Validator,
) *Handler {
	return &Handler{
		intake:        intakeSvc,
		dedupe:        dedupeSvc,
		scoring:       scoringSvc,
		qualification: qualificationSvc,
		health:        healthSvc,
		conversion:    conversionSvc,
		nurturing:     nurturingSvc,
		batch:         batchSvc,
		jobs:          jobs,
		batchCfg:      batchCfg,
		val:           val,
	}
}

// RegisterLeadRoutes mounts the lead-facing routes.
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateLead)
	rg.POST("/duplicates/check", h.CheckDuplicates)
	rg.POST("/duplicates/merge", h.MergeDuplicates)
	rg.GET("/:id/score", h.GetScore)
	rg.POST("/:id/score/increment", h.IncrementScore)
	rg.GET("/:id/eligibility", h.GetEligibility)
	rg.POST("/:id/convert", h.Convert)
}

// RegisterAccountRoutes mounts the account-facing routes.
func (h *Handler) RegisterAccountRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/health", h.GetAccountHealth)
}

// RegisterAdminRoutes mounts the batch and sweep triggers. The /recompute
// and /nurture routes run inline and return a report; the /jobs routes hand
// the same work to the asynq worker.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/recompute/scores", h.RecomputeScores)
	rg.POST("/recompute/accounts", h.RecomputeAccounts)
	rg.POST("/nurture/sweep", h.NurtureSweep)
	rg.POST("/jobs/recompute-scores", h.enqueueJob(scheduler.TaskRecomputeScores))
	rg.POST("/jobs/recompute-accounts", h.enqueueJob(scheduler.TaskRecomputeAccounts))
	rg.POST("/jobs/nurture-sweep", h.enqueueJob(scheduler.TaskNurtureSweep))
}

func (h *Handler) CreateLead(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.intake.Create(c.Request.Context(), intake.CreateParams{
		CompanyID:       id.CompanyID(),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		CompanyName:     req.CompanyName,
		Country:         req.Country,
		Source:          req.Source,
		Campaign:        req.Campaign,
		Medium:          req.Medium,
		Term:            req.Term,
		BudgetRange:     req.BudgetRange,
		AuthorityLevel:  req.AuthorityLevel,
		InterestProduct: req.InterestProduct,
		Timeline:        req.Timeline,
		AssignedTo:      req.AssignedTo,
		AssignmentRule:  domain.AssignmentRule(req.AssignmentRule),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.FromLead(lead))
}

func (h *Handler) CheckDuplicates(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CheckDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	verdict, err := h.dedupe.FindDuplicates(c.Request.Context(), id.CompanyID(), dedupe.Candidate{
		Email:       req.Email,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
	}, req.ExcludeLeadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromVerdict(verdict))
}

func (h *Handler) MergeDuplicates(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.MergeDuplicatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	report, err := h.dedupe.MergeDuplicates(c.Request.Context(), id.CompanyID(), req.SurvivorID, req.DuplicateIDs, dedupe.MergePolicy{
		ScorePolicy: req.ScorePolicy,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromMergeReport(report))
}

func (h *Handler) GetScore(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	breakdown, err := h.scoring.Recalculate(c.Request.Context(), id.CompanyID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, breakdown)
}

func (h *Handler) IncrementScore(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.IncrementScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	score, err := h.scoring.Increment(c.Request.Context(), id.CompanyID(), leadID, req.Delta, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"leadId": leadID, "leadScore": score})
}

func (h *Handler) GetEligibility(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	assessment, err := h.qualification.Assess(c.Request.Context(), id.CompanyID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, assessment)
}

func (h *Handler) Convert(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.ConvertLeadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	// Skipping the eligibility gate is an admin override.
	if req.SkipEligibility && id.Role() != string(domain.RoleAdmin) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	actorID := id.UserID()
	result, err := h.conversion.Convert(c.Request.Context(), id.CompanyID(), leadID, conversion.Options{
		SkipEligibility: req.SkipEligibility,
		ActorID:         &actorID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.FromConversion(result))
}

func (h *Handler) GetAccountHealth(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	accountID, ok := pathID(c)
	if !ok {
		return
	}

	breakdown, changed, err := h.health.Refresh(c.Request.Context(), id.CompanyID(), accountID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"accountId": accountID, "health": breakdown, "changed": changed})
}

func (h *Handler) RecomputeScores(c *gin.Context) {
	h.runBatch(c, h.batch.RecomputeScores)
}

func (h *Handler) RecomputeAccounts(c *gin.Context) {
	h.runBatch(c, h.batch.RecomputeAccounts)
}

func (h *Handler) runBatch(c *gin.Context, job func(ctx context.Context, companyID uuid.UUID, opts batch.Options) (batch.Report, error)) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.BatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	report, err := job(c.Request.Context(), id.CompanyID(), batch.Options{
		DryRun:    req.DryRun,
		ChunkSize: h.batchCfg.GetBatchChunkSize(),
		Workers:   h.batchCfg.GetBatchWorkers(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

func (h *Handler) NurtureSweep(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.BatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}

	report, err := h.nurturing.SweepCompany(c.Request.Context(), id.CompanyID(), req.DryRun)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

// enqueueJob hands a company-scoped job to the worker queue and returns 202.
func (h *Handler) enqueueJob(taskName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := httpkit.MustGetIdentity(c)
		if id == nil {
			return
		}
		if h.jobs == nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "job queue not configured", nil)
			return
		}

		var req transport.BatchRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
				return
			}
		}

		payload := scheduler.CompanyJobPayload{
			CompanyID: id.CompanyID().String(),
			DryRun:    req.DryRun,
		}

		var err error
		switch taskName {
		case scheduler.TaskRecomputeScores:
			err = h.jobs.EnqueueRecomputeScores(c.Request.Context(), payload)
		case scheduler.TaskRecomputeAccounts:
			err = h.jobs.EnqueueRecomputeAccounts(c.Request.Context(), payload)
		case scheduler.TaskNurtureSweep:
			err = h.jobs.EnqueueNurtureSweep(c.Request.Context(), payload)
		}
		if err != nil {
			httpkit.Error(c, http.StatusInternalServerError, "failed to enqueue job", nil)
			return
		}

		httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "queued", "job": taskName, "dryRun": req.DryRun})
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
