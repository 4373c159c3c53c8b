package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	authMiddleware "github.com/click2025-space493/learnova-paltform-sub001/internal/auth/middleware"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/playtoken"
	"go.uber.org/zap"
)

// PlayTokenService defines the interface for playback token operations
type PlayTokenService interface {
	// Issue re-validates entitlement and mints a single-use playback token
	// bound to the subject, lesson and origin.
	//
	// Fails with playtoken.ErrResourceUnavailable, ErrEntitlementDenied or
	// ErrOriginRejected; any other error is internal.
	Issue(ctx context.Context, subjectID, lessonID int, origin, agent string) (*playtoken.IssueResult, error)
	// Verify checks the token against the lesson being accessed and the
	// presenting subject, consuming its single use on success.
	//
	// Fails with playtoken.ErrTokenInvalid, ErrTokenExpired,
	// ErrResourceMismatch, ErrSubjectMismatch or ErrTokenAlreadyUsed; any
	// other error is internal.
	Verify(ctx context.Context, tokenString string, lessonID, subjectID int) (*playtoken.Claims, error)
}

// PlayTokenHandler handles playback token HTTP requests
type PlayTokenHandler struct {
	BaseHandler
	service PlayTokenService
}

// NewPlayTokenHandler creates a new playback token handler
func NewPlayTokenHandler(service PlayTokenService, logger *zap.Logger) *PlayTokenHandler {
	return &PlayTokenHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     service,
	}
}

// issueTokenRequest is the body of POST /videos/token
type issueTokenRequest struct {
	LessonID int `json:"lessonId"`
	CourseID int `json:"courseId"`
}

// issueTokenResponse is the success body of POST /videos/token
type issueTokenResponse struct {
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expiresAt"`
	ResourceMediaID string    `json:"resourceMediaId"`
}

// requestOrigin extracts the caller's origin for token binding, preferring
// the Origin header and falling back to Referer
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	return r.Header.Get("Referer")
}

// IssueToken handles POST /videos/token
// @Summary Issue a playback token
// @Description Issue a short-lived, single-use playback token for a lesson video. Entitlement is re-checked at issuance.
// @Tags videos
// @Accept json
// @Produce json
// @Param request body issueTokenRequest true "Lesson to request playback for"
// @Success 200 {object} issueTokenResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 403 {object} map[string]string "Entitlement denied or origin rejected"
// @Failure 404 {object} map[string]string "Lesson has no playable video"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos/token [post]
func (h *PlayTokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := authMiddleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LessonID == 0 {
		h.RespondError(w, http.StatusBadRequest, "lessonId is required")
		return
	}

	result, err := h.service.Issue(r.Context(), subjectID, req.LessonID, requestOrigin(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, playtoken.ErrResourceUnavailable):
			h.RespondError(w, http.StatusNotFound, "lesson has no playable video")
		case errors.Is(err, playtoken.ErrEntitlementDenied):
			h.RespondError(w, http.StatusForbidden, "you do not have access to this lesson")
		case errors.Is(err, playtoken.ErrOriginRejected):
			h.RespondError(w, http.StatusForbidden, "request origin is not allowed")
		default:
			h.Logger.Error("failed to issue playback token",
				zap.Error(err),
				zap.Int("lesson_id", req.LessonID),
			)
			h.RespondError(w, http.StatusInternalServerError, "failed to issue playback token")
		}
		return
	}

	h.RespondJSON(w, http.StatusOK, issueTokenResponse{
		Token:           result.Token,
		ExpiresAt:       result.ExpiresAt,
		ResourceMediaID: result.MediaID,
	})
}

// VerifyToken handles GET /videos/token/verify
// @Summary Verify a playback token
// @Description Verify a playback token against the lesson being accessed. A token verifies successfully at most once.
// @Tags videos
// @Produce json
// @Param token query string true "Playback token"
// @Param lessonId query int true "Lesson the token is presented for"
// @Success 200 {object} playtoken.Claims
// @Failure 401 {object} map[string]string "Invalid or expired token"
// @Failure 403 {object} map[string]string "Mismatched binding or prior use"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos/token/verify [get]
func (h *PlayTokenHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := authMiddleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	tokenString := r.URL.Query().Get("token")
	lessonIDStr := r.URL.Query().Get("lessonId")
	if tokenString == "" || lessonIDStr == "" {
		h.RespondError(w, http.StatusBadRequest, "token and lessonId are required")
		return
	}

	lessonID, err := strconv.Atoi(lessonIDStr)
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid lessonId")
		return
	}

	claims, err := h.service.Verify(r.Context(), tokenString, lessonID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, playtoken.ErrTokenExpired):
			h.RespondError(w, http.StatusUnauthorized, "playback token has expired")
		case errors.Is(err, playtoken.ErrTokenInvalid):
			h.RespondError(w, http.StatusUnauthorized, "playback token is invalid")
		case errors.Is(err, playtoken.ErrResourceMismatch):
			h.RespondError(w, http.StatusForbidden, "playback token was issued for a different lesson")
		case errors.Is(err, playtoken.ErrSubjectMismatch):
			h.RespondError(w, http.StatusForbidden, "playback token was issued to a different user")
		case errors.Is(err, playtoken.ErrTokenAlreadyUsed):
			h.RespondError(w, http.StatusForbidden, "playback token has already been used")
		default:
			h.Logger.Error("failed to verify playback token",
				zap.Error(err),
				zap.Int("lesson_id", lessonID),
			)
			h.RespondError(w, http.StatusInternalServerError, "failed to verify playback token")
		}
		return
	}

	h.RespondJSON(w, http.StatusOK, claims)
}
