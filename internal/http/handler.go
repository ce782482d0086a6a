package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parksign-service/internal/domain/parking"
	"parksign-service/internal/gemini"
	"parksign-service/internal/imaging"
	"parksign-service/internal/report"
	"parksign-service/internal/service"
)

type Handler struct {
	session  *service.Session
	pipeline *report.Pipeline
	log      zerolog.Logger
}

func NewHandler(session *service.Session, pipeline *report.Pipeline, log zerolog.Logger) *Handler {
	return &Handler{
		session:  session,
		pipeline: pipeline,
		log:      log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/api/v1")
	{
		public.GET("/session", h.getSession)
		public.POST("/scan", h.scan)
		public.POST("/scan/recheck", h.recheck)
		public.POST("/scan/reset", h.reset)
		public.GET("/history", h.listHistory)
		public.DELETE("/history/:id", h.deleteHistoryItem)
		public.POST("/feedback", h.setFeedback)
		public.GET("/profile", h.getProfile)
		public.PUT("/profile", h.putProfile)
		public.POST("/profile/edit", h.beginProfileEdit)
		public.POST("/profile/cancel", h.cancelProfileEdit)
		public.POST("/reports", h.submitReport)
	}

	// Destructive operations sit behind auth.
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.DELETE("/history", h.clearHistory)
		protected.DELETE("/profile/cloud", h.deleteCloudData)
	}
}

func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.session.Snapshot()))
}

type scanRequest struct {
	Image string `json:"image" binding:"required"`
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	raw, err := imaging.DecodeDataURI(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	item, err := h.session.Scan(c.Request.Context(), raw)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"item_id":        item.ID,
		"interpretation": item.Interpretation,
	}))
}

func (h *Handler) recheck(c *gin.Context) {
	item, err := h.session.Recheck(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{
		"item_id":        item.ID,
		"interpretation": item.Interpretation,
	}))
}

func (h *Handler) reset(c *gin.Context) {
	if err := h.session.Reset(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.session.Snapshot()))
}

func (h *Handler) listHistory(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.session.History()))
}

func (h *Handler) deleteHistoryItem(c *gin.Context) {
	if err := h.session.DeleteHistoryItem(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": c.Param("id")}))
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.session.ClearHistory(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"cleared": true}))
}

type feedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

func (h *Handler) setFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.session.SetFeedback(c.Request.Context(), parking.Feedback(req.Feedback)); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"feedback": req.Feedback}))
}

func (h *Handler) getProfile(c *gin.Context) {
	p := h.session.Profile()
	if p == nil {
		c.JSON(http.StatusNotFound, errorResponse("no profile yet"))
		return
	}
	c.JSON(http.StatusOK, successResponse(p))
}

// putProfile completes onboarding on the first call and saves an edit on
// later ones.
func (h *Handler) putProfile(c *gin.Context) {
	var p parking.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var err error
	if h.session.Snapshot().State == service.StateOnboarding {
		err = h.session.CompleteOnboarding(c.Request.Context(), p)
	} else {
		err = h.session.SaveProfile(c.Request.Context(), p)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.session.Profile()))
}

func (h *Handler) beginProfileEdit(c *gin.Context) {
	if err := h.session.BeginProfileEdit(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.session.Snapshot()))
}

func (h *Handler) cancelProfileEdit(c *gin.Context) {
	if err := h.session.CancelProfileEdit(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.session.Snapshot()))
}

func (h *Handler) deleteCloudData(c *gin.Context) {
	if err := h.session.DeleteCloudData(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("failed to delete cloud data")
		c.JSON(http.StatusBadGateway, errorResponse("could not delete cloud data"))
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

type reportRequest struct {
	Category    string `json:"category" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (h *Handler) submitReport(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("report submission is not configured"))
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	profile := h.session.Profile()
	if profile == nil {
		c.JSON(http.StatusBadRequest, errorResponse("a profile is required to submit a report"))
		return
	}
	image, interp := h.session.CurrentScan()
	if interp == nil {
		c.JSON(http.StatusBadRequest, errorResponse("no current result to report"))
		return
	}

	result, err := h.pipeline.Submit(c.Request.Context(), report.Submission{
		Category:    req.Category,
		Description: req.Description,
		Profile:     *profile,
		Image:       image,
		Result:      interp.Primary(),
		Source:      parking.ReportSourceOriginal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, gemini.ErrInvalidInput),
		errors.Is(err, imaging.ErrImageProcessing):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, gemini.ErrConfiguration):
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
	case errors.Is(err, gemini.ErrNetwork), errors.Is(err, gemini.ErrValidation),
		errors.Is(err, report.ErrSubmission):
		c.JSON(http.StatusBadGateway, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
