package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timvw/persona-survey/internal/logger"
	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/session"
	"github.com/timvw/persona-survey/internal/survey"
)

// SessionCookie carries the session ID for browser clients.
const SessionCookie = "persona_survey_session"

// Handler serves the survey API.
type Handler struct {
	svc      *survey.Service
	sessions *session.Registry
	log      *logger.Logger
}

func NewHandler(svc *survey.Service, sessions *session.Registry, baseLog *logger.Logger) *Handler {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Handler{svc: svc, sessions: sessions, log: baseLog.With("handler", "SurveyHandler")}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type questionsResponse struct {
	Source    string           `json:"source"`
	Questions []model.Question `json:"questions"`
}

// GET /api/questions
func (h *Handler) ListQuestions(c *gin.Context) {
	set := h.svc.Questions()
	RespondOK(c, questionsResponse{Source: set.Source(), Questions: set.Items()})
}

// POST /api/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	sess := h.sessions.Create()
	sess.Lock()
	snap := sess.Snapshot()
	sess.Unlock()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
	c.JSON(http.StatusCreated, snap)
}

// GET /api/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	sess.Lock()
	snap := sess.Snapshot()
	sess.Unlock()
	RespondOK(c, snap)
}

// PUT /api/sessions/:id/ratings
func (h *Handler) SetRatings(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	var body map[string]int
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("ratings must be an object of question id to integer: %w", err))
		return
	}

	sess.Lock()
	defer sess.Unlock()

	// Reject the whole request before applying anything.
	set := sess.Questions()
	for id := range body {
		if _, ok := set.Get(id); !ok {
			RespondError(c, http.StatusBadRequest, CodeUnknownQuestion, fmt.Errorf("%w: %q", session.ErrUnknownQuestion, id))
			return
		}
	}
	if sess.State() == session.StateAssessmentRequested {
		RespondError(c, http.StatusConflict, CodeBusy, session.ErrBusy)
		return
	}
	for _, id := range set.IDs() {
		v, ok := body[id]
		if !ok {
			continue
		}
		if _, err := sess.Set(id, v); err != nil {
			RespondError(c, http.StatusInternalServerError, CodeInternal, err)
			return
		}
	}
	RespondOK(c, sess.Snapshot())
}

// POST /api/sessions/:id/assessment
func (h *Handler) Assess(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	if _, err := h.svc.Assess(c.Request.Context(), sess); err != nil {
		switch {
		case errors.Is(err, session.ErrNoRatings):
			RespondError(c, http.StatusUnprocessableEntity, CodeNoRatings, err)
		case errors.Is(err, session.ErrBusy):
			RespondError(c, http.StatusConflict, CodeBusy, err)
		default:
			RespondError(c, http.StatusInternalServerError, CodeInternal, err)
		}
		return
	}
	sess.Lock()
	snap := sess.Snapshot()
	sess.Unlock()
	RespondOK(c, snap)
}

// POST /api/sessions/:id/finish
func (h *Handler) Finish(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	res, err := h.svc.Finish(c.Request.Context(), sess)
	if err != nil {
		if errors.Is(err, session.ErrNotReady) {
			RespondError(c, http.StatusConflict, CodeNotReady, err)
			return
		}
		h.log.Error("finish failed", "session", sess.ID, "error", err)
		RespondError(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	RespondOK(c, res)
}

func (h *Handler) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	sess, ok := h.sessions.Get(id)
	if !ok {
		RespondError(c, http.StatusNotFound, CodeNotFound, fmt.Errorf("session %q not found", id))
		return nil, false
	}
	return sess, true
}
