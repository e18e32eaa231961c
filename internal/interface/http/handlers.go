package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/craftquest/challenge-engine/internal/application/command"
	"github.com/craftquest/challenge-engine/internal/application/query"
	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
	"github.com/craftquest/challenge-engine/internal/infrastructure/scheduler"
	"github.com/craftquest/challenge-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

const probeTimeout = 2 * time.Second

type healthStatus struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			checks["database"] = "down: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "up"
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			// Cache loss degrades reads; it does not make the engine
			// unhealthy.
			checks["cache"] = "down: " + err.Error()
		} else {
			checks["cache"] = "up"
		}
	}

	if s.deps.Scheduler != nil {
		if s.deps.Scheduler.IsRunning() {
			checks["scheduler"] = "running"
		} else {
			checks["scheduler"] = "stopped"
		}
	}

	status := healthStatus{
		Status:    "healthy",
		Uptime:    s.Uptime().String(),
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}

	code := http.StatusOK
	if !healthy {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(ctx); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "challenge-engine",
		"api":     "/api/v1",
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG & PROGRESSION READS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Catalog queries are disabled")
		return
	}

	q := query.GetCatalogQuery{
		Category: challenge.Category(getQueryParam(r, "category", "")),
		Status:   challenge.Status(getQueryParam(r, "status", "")),
		Limit:    getQueryParamInt(r, "limit", 0),
		Offset:   getQueryParamInt(r, "offset", 0),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	entries, err := s.deps.Catalog.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, entries, &ResponseMeta{
		Count:  len(entries),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recommendations == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Recommendations are disabled")
		return
	}

	q := query.GetRecommendationsQuery{
		UserID: r.PathValue("id"),
		Limit:  getQueryParamInt(r, "limit", 0),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	recs, err := s.deps.Recommendations.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, recs, &ResponseMeta{Count: len(recs)})
}

func (s *Server) handleGetProgression(w http.ResponseWriter, r *http.Request) {
	if s.deps.Profile == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Progression queries are disabled")
		return
	}

	q := query.GetProgressionProfileQuery{UserID: r.PathValue("id")}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	profile, err := s.deps.Profile.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPATION WRITES
// ══════════════════════════════════════════════════════════════════════════════

type joinRequest struct {
	UserID      string `json:"user_id"`
	MaxProgress int    `json:"max_progress"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := command.JoinChallengeCommand{
		UserID:      req.UserID,
		ChallengeID: r.PathValue("id"),
		MaxProgress: req.MaxProgress,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.Join.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordDTO(result.Record))
}

type submitRequest struct {
	UserID       string   `json:"user_id"`
	Content      string   `json:"content"`
	EvidenceURLs []string `json:"evidence_urls"`
	Type         string   `json:"type"`
	Progress     int      `json:"progress"`
}

type submitResponse struct {
	Record           *recordDTO `json:"record"`
	PendingReview    bool       `json:"pending_review"`
	Completed        bool       `json:"completed"`
	AlreadyCompleted bool       `json:"already_completed"`
	XPAwarded        int        `json:"xp_awarded"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := command.RecordSubmissionCommand{
		UserID:       req.UserID,
		ChallengeID:  r.PathValue("id"),
		Content:      req.Content,
		EvidenceURLs: req.EvidenceURLs,
		Type:         participation.SubmissionType(req.Type),
		Progress:     req.Progress,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.Submit.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Record:           toRecordDTO(result.Record),
		PendingReview:    result.PendingReview,
		Completed:        result.Completed,
		AlreadyCompleted: result.AlreadyCompleted,
		XPAwarded:        result.XPAwarded,
	})
}

type abandonRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	var req abandonRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := command.AbandonChallengeCommand{
		UserID:      req.UserID,
		ChallengeID: r.PathValue("id"),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	record, err := s.deps.Abandon.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordDTO(record))
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN: LIFECYCLE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

type createChallengeRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Difficulty    string     `json:"difficulty"`
	Type          string     `json:"type"`
	Tier          string     `json:"tier"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	RewardXP      int        `json:"reward_xp"`
	RewardBadges  []string   `json:"reward_badges"`
	BonusCriteria []string   `json:"bonus_criteria"`
	SeriesID      string     `json:"series_id"`
	SeriesOrder   int        `json:"series_order"`
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ch, err := s.deps.Admin.HandleCreate(r.Context(), command.CreateChallengeCommand{
		Title:       req.Title,
		Description: req.Description,
		Category:    challenge.Category(req.Category),
		Difficulty:  challenge.Difficulty(req.Difficulty),
		Type:        challenge.Type(req.Type),
		Tier:        challenge.Tier(req.Tier),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Rewards: challenge.Rewards{
			XP:            req.RewardXP,
			Badges:        req.RewardBadges,
			BonusCriteria: req.BonusCriteria,
		},
		SeriesID:    req.SeriesID,
		SeriesOrder: req.SeriesOrder,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toChallengeDTO(ch))
}

func (s *Server) handleAdminSchedule(w http.ResponseWriter, r *http.Request) {
	ch, err := s.deps.Admin.HandleSchedule(r.Context(), command.ScheduleChallengeCommand{
		ChallengeID: r.PathValue("id"),
		Trigger:     challenge.TriggerAdmin,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChallengeDTO(ch))
}

func (s *Server) handleAdminComplete(w http.ResponseWriter, r *http.Request) {
	ch, err := s.deps.Admin.HandleComplete(r.Context(), command.CompleteChallengeCommand{
		ChallengeID: r.PathValue("id"),
		Trigger:     challenge.TriggerAdmin,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChallengeDTO(ch))
}

func (s *Server) handleAdminArchive(w http.ResponseWriter, r *http.Request) {
	force := getQueryParam(r, "force", "") == "true"

	ch, err := s.deps.Admin.HandleArchive(r.Context(), command.ArchiveChallengeCommand{
		ChallengeID: r.PathValue("id"),
		Trigger:     challenge.TriggerAdmin,
		Force:       force,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChallengeDTO(ch))
}

type reviewRequest struct {
	UserID     string `json:"user_id"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision"`
}

type reviewResponse struct {
	Record           *recordDTO `json:"record"`
	XPAwarded        int        `json:"xp_awarded"`
	AlreadyCompleted bool       `json:"already_completed"`
}

func (s *Server) handleAdminReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cmd := command.ReviewSubmissionCommand{
		UserID:      req.UserID,
		ChallengeID: r.PathValue("id"),
		ReviewerID:  req.ReviewerID,
		Decision:    command.ReviewDecision(req.Decision),
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.Review.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		Record:           toRecordDTO(result.Record),
		XPAwarded:        result.XPAwarded,
		AlreadyCompleted: result.AlreadyCompleted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN: JOB CONTROL
// ══════════════════════════════════════════════════════════════════════════════

type jobInfoDTO struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int64     `json:"run_count"`
	FailCount   int64     `json:"fail_count"`
	SkipCount   int64     `json:"skip_count"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Scheduler is disabled")
		return
	}

	jobs := s.deps.Scheduler.ListJobs()
	dtos := make([]jobInfoDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, jobInfoDTO{
			Name:        j.Name,
			Description: j.Description,
			Enabled:     j.Enabled,
			Schedule:    j.Schedule,
			LastRun:     j.LastRun,
			NextRun:     j.NextRun,
			RunCount:    j.RunCount,
			FailCount:   j.FailCount,
			SkipCount:   j.SkipCount,
		})
	}

	writeJSONWithMeta(w, r, http.StatusOK, dtos, &ResponseMeta{Count: len(dtos)})
}

type jobRunResponse struct {
	Job      string `json:"job"`
	Success  bool   `json:"success"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Scheduler is disabled")
		return
	}

	name := r.PathValue("name")
	result, err := s.deps.Scheduler.RunNow(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobNotFound):
			writeJSONError(w, http.StatusNotFound, "job_not_found", err.Error())
		case errors.Is(err, scheduler.ErrJobRunning):
			writeJSONError(w, http.StatusConflict, "job_running", err.Error())
		default:
			// The job ran and failed; surface the result with the error.
			resp := jobRunResponse{Job: name, Success: false, Error: err.Error()}
			if result != nil {
				resp.Duration = result.Duration.String()
			}
			writeJSON(w, http.StatusInternalServerError, resp)
		}
		return
	}

	writeJSON(w, http.StatusOK, jobRunResponse{
		Job:      result.JobName,
		Success:  result.Success,
		Duration: result.Duration.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DTO MAPPING & ERROR TRANSLATION
// ══════════════════════════════════════════════════════════════════════════════

type recordDTO struct {
	UserID      string     `json:"user_id"`
	ChallengeID string     `json:"challenge_id"`
	Tier        string     `json:"tier"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	MaxProgress int        `json:"max_progress"`
	JoinedAt    time.Time  `json:"joined_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	XPEarned    int        `json:"xp_earned"`
	Badges      []string   `json:"badges_earned,omitempty"`
	Submissions int        `json:"submission_count"`
}

func toRecordDTO(rec *participation.UserChallenge) *recordDTO {
	if rec == nil {
		return nil
	}
	return &recordDTO{
		UserID:      rec.UserID,
		ChallengeID: rec.ChallengeID,
		Tier:        string(rec.Tier),
		Category:    string(rec.Category),
		Status:      string(rec.Status),
		Progress:    rec.Progress,
		MaxProgress: rec.MaxProgress,
		JoinedAt:    rec.JoinedAt,
		SubmittedAt: rec.SubmittedAt,
		CompletedAt: rec.CompletedAt,
		XPEarned:    rec.XPEarned,
		Badges:      rec.BadgesEarned,
		Submissions: len(rec.Submissions),
	}
}

type challengeDTO struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	Difficulty       string     `json:"difficulty"`
	Type             string     `json:"type"`
	Tier             string     `json:"tier"`
	Status           string     `json:"status"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	RewardXP         int        `json:"reward_xp"`
	RewardBadges     []string   `json:"reward_badges,omitempty"`
	SeriesID         string     `json:"series_id,omitempty"`
	SeriesOrder      int        `json:"series_order,omitempty"`
	ParticipantCount int        `json:"participant_count"`
}

func toChallengeDTO(ch *challenge.Challenge) *challengeDTO {
	if ch == nil {
		return nil
	}
	return &challengeDTO{
		ID:               ch.ID,
		Title:            ch.Title,
		Category:         string(ch.Category),
		Difficulty:       string(ch.Difficulty),
		Type:             string(ch.Type),
		Tier:             string(ch.Tier),
		Status:           string(ch.Status),
		StartDate:        ch.StartDate,
		EndDate:          ch.EndDate,
		RewardXP:         ch.Rewards.XP,
		RewardBadges:     ch.Rewards.Badges,
		SeriesID:         ch.SeriesID,
		SeriesOrder:      ch.SeriesOrder,
		ParticipantCount: ch.ParticipantCount,
	}
}

// decodeBody decodes the JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Malformed JSON body: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps domain and application errors to HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, challenge.ErrChallengeNotFound),
		errors.Is(err, challenge.ErrTemplateNotFound),
		errors.Is(err, participation.ErrRecordNotFound),
		errors.Is(err, shared.ErrNotParticipating),
		shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, shared.ErrAlreadyJoined),
		errors.Is(err, challenge.ErrChallengeAlreadyExists),
		errors.Is(err, participation.ErrRecordAlreadyExists),
		errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())

	case errors.Is(err, shared.ErrChallengeNotJoinable),
		errors.Is(err, challenge.ErrArchivedImmutable),
		errors.Is(err, shared.ErrImmutable),
		errors.Is(err, shared.ErrInvalidState),
		shared.IsInvalidTransition(err):
		writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())

	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())

	default:
		s.logger.Error("unhandled request error", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
