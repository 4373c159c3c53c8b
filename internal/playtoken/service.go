// Package playtoken issues and verifies the short-lived, single-use playback
// tokens that gate video delivery. A token binds subject, lesson, course and
// origin inside a signed claim set, so a captured token for one lesson can
// never unlock another.
package playtoken

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenRecordRepository defines the interface for token usage record access
type TokenRecordRepository interface {
	// Create inserts a new token record with used_at unset
	Create(ctx context.Context, record *models.VideoAccessToken) error
	// GetByHash retrieves a token record by its hash
	GetByHash(ctx context.Context, tokenHash string) (*models.VideoAccessToken, error)
	// MarkUsed stamps used_at for the given hash only if it is currently unset.
	// Returns true if this call claimed the token.
	MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error)
}

// EntitlementRepository defines the interface for entitlement lookups
type EntitlementRepository interface {
	// GetLessonMedia retrieves the lesson's course and playable media identifier
	GetLessonMedia(ctx context.Context, lessonID int) (*models.LessonMedia, error)
	// HasAccess reports whether the subject owns the course or holds an
	// approved enrollment for it
	HasAccess(ctx context.Context, subjectID, courseID int) (bool, error)
}

// Claims is the decoded claim set of a playback token
type Claims struct {
	SubjectID int       `json:"subjectId"`
	LessonID  int       `json:"lessonId"`
	CourseID  int       `json:"courseId"`
	Origin    string    `json:"origin,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueResult is returned on successful issuance
type IssueResult struct {
	Token     string
	ExpiresAt time.Time
	MediaID   string
}

// Service issues and verifies playback tokens
type Service struct {
	secret         string
	ttl            time.Duration
	allowedOrigins []string
	strictOrigin   bool
	records        TokenRecordRepository
	entitlements   EntitlementRepository
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a new playback token service. The TTL is fixed at
// construction and never extended for a live token.
func NewService(
	secret string,
	ttl time.Duration,
	allowedOrigins []string,
	strictOrigin bool,
	records TokenRecordRepository,
	entitlements EntitlementRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		secret:         secret,
		ttl:            ttl,
		allowedOrigins: allowedOrigins,
		strictOrigin:   strictOrigin,
		records:        records,
		entitlements:   entitlements,
		logger:         logger,
		now:            time.Now,
	}
}

// hashToken returns the SHA-256 hex digest used to key the usage record.
// The raw token is never persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// originAllowed checks the origin against the allow-list. An absent origin is
// accepted unless strict mode is on; callers needing enforcement must send one.
// An empty allow-list disables the check entirely.
func (s *Service) originAllowed(origin string) bool {
	if origin == "" {
		return !s.strictOrigin
	}
	if len(s.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// Issue re-validates entitlement, signs a claim set bound to
// {subject, lesson, course, origin} and records its use-once entry.
// The entitlement check always runs against the lesson's actual course from
// the database, never against caller-supplied context.
func (s *Service) Issue(ctx context.Context, subjectID, lessonID int, origin, agent string) (*IssueResult, error) {
	media, err := s.entitlements.GetLessonMedia(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceUnavailable
		}
		return nil, fmt.Errorf("failed to load lesson media: %w", err)
	}
	if media.MediaID == "" {
		return nil, ErrResourceUnavailable
	}

	allowed, err := s.entitlements.HasAccess(ctx, subjectID, media.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !allowed {
		return nil, ErrEntitlementDenied
	}

	if !s.originAllowed(origin) {
		return nil, ErrOriginRejected
	}

	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub": subjectID,
		"res": lessonID,
		"crs": media.CourseID,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}
	if origin != "" {
		claims["org"] = origin
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign playback token: %w", err)
	}

	record := &models.VideoAccessToken{
		TokenHash:     hashToken(signed),
		LessonID:      lessonID,
		SubjectID:     subjectID,
		ExpiresAt:     expiresAt,
		RequestOrigin: origin,
		RequestAgent:  agent,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record playback token: %w", err)
	}

	return &IssueResult{
		Token:     signed,
		ExpiresAt: expiresAt,
		MediaID:   media.MediaID,
	}, nil
}

// Verify checks signature, expiry, resource and subject binding, then claims
// the token's single use. A token that verifies once fails every later attempt
// with ErrTokenAlreadyUsed, including under concurrent verification races.
func (s *Service) Verify(ctx context.Context, tokenString string, lessonID, subjectID int) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	claims, err := decodeClaims(mapClaims)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	// A token minted for one lesson must never unlock another, regardless of
	// signature validity
	if claims.LessonID != lessonID {
		return nil, ErrResourceMismatch
	}
	if claims.SubjectID != subjectID {
		return nil, ErrSubjectMismatch
	}

	// Single-use claim: conditional update, atomic under concurrent attempts
	usedAt := s.now()
	claimed, err := s.records.MarkUsed(ctx, hashToken(tokenString), usedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to claim playback token: %w", err)
	}
	if !claimed {
		if _, getErr := s.records.GetByHash(ctx, hashToken(tokenString)); getErr != nil {
			// Valid signature but no record: not minted by this service instance
			return nil, ErrTokenInvalid
		}
		s.logger.Warn("playback token replay detected",
			zap.Int("subject_id", subjectID),
			zap.Int("lesson_id", lessonID),
			zap.String("event", "token_replay"),
		)
		return nil, ErrTokenAlreadyUsed
	}

	return claims, nil
}

// decodeClaims extracts the typed claim set (JWT numbers decode as float64)
func decodeClaims(mapClaims jwt.MapClaims) (*Claims, error) {
	sub, ok := mapClaims["sub"].(float64)
	if !ok {
		return nil, fmt.Errorf("sub not found in token")
	}
	res, ok := mapClaims["res"].(float64)
	if !ok {
		return nil, fmt.Errorf("res not found in token")
	}
	crs, ok := mapClaims["crs"].(float64)
	if !ok {
		return nil, fmt.Errorf("crs not found in token")
	}
	iat, ok := mapClaims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("iat not found in token")
	}
	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("exp not found in token")
	}

	claims := &Claims{
		SubjectID: int(sub),
		LessonID:  int(res),
		CourseID:  int(crs),
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}
	if org, ok := mapClaims["org"].(string); ok {
		claims.Origin = org
	}
	return claims, nil
}
