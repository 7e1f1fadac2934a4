package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"interviewer/pkg/gateway"
	"interviewer/pkg/interview"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/plan"
	"interviewer/pkg/questionbank"
	"interviewer/pkg/templates"
	"interviewer/pkg/version"
)

// Form field names shared by the multipart endpoints.
const (
	fieldFile       = "file"
	fieldManualText = "manual_text"
	fieldScenario   = "scenario"
	fieldLanguage   = "language"
	fieldPlan       = "interview_plan"
	fieldPack       = "question_pack"
	fieldTranscript = "transcript"
	fieldHistory    = "history"
	fieldResume     = "resume_text"
	fieldDifficulty = "difficulty"
	fieldSessionID  = "session_id"
)

type upload struct {
	data     []byte
	filename string
	mimeType string
}

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// formFile reads the named file part; a missing part is not an error.
func formFile(r *http.Request, name string) (*upload, error) {
	f, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &upload{
		data:     data,
		filename: header.Filename,
		mimeType: header.Header.Get("Content-Type"),
	}, nil
}

// snapshotPlan decodes a client-held plan. Anything unusable counts as no plan.
func (s *Server) snapshotPlan(raw string) *plan.Plan {
	p, err := plan.DecodeSnapshot([]byte(raw))
	if err != nil {
		s.logger.Warn("Ignoring client plan: %v", err)
		return nil
	}
	if !p.HasSections() {
		return nil
	}
	return &p
}

func (s *Server) resumeFromForm(r *http.Request) (string, error) {
	file, err := formFile(r, fieldFile)
	if err != nil {
		return "", err
	}
	if file != nil {
		return s.interview.ExtractResume(file.data, file.filename, ""), nil
	}
	return s.interview.ExtractResume(nil, "", r.FormValue(fieldManualText)), nil
}

func gatewayStatus(err error) int {
	if errors.Is(err, gateway.ErrAllProvidersFailed) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleAnalyzeResume implements POST /api/analyze-resume.
func (s *Server) handleAnalyzeResume(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	resume, err := s.resumeFromForm(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	res, err := s.interview.GeneratePlan(r.Context(), interview.PlanRequest{
		ResumeText:   resume,
		Scenario:     r.FormValue(fieldScenario),
		Language:     r.FormValue(fieldLanguage),
		QuestionPack: r.FormValue(fieldPack),
	})
	if err != nil {
		s.logger.Error("Error analyzing resume: %v", err)
		s.writeError(w, gatewayStatus(err), err.Error())
		return
	}

	var planOut any = res.Plan
	if res.Plan == nil {
		planOut = map[string]any{
			"raw":      res.Failure.Raw,
			"summary":  "Error parsing plan JSON",
			"error":    res.Failure.Reason,
			"sections": []plan.Section{},
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"resume_text":    res.ResumeText,
		"interview_plan": planOut,
		"scenario":       res.Scenario,
	})
}

// handleUploadResume implements POST /api/upload-resume.
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	resume, err := s.resumeFromForm(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	if resume == "" {
		resume = interview.NoResume
	}

	scenario := r.FormValue(fieldScenario)
	language := r.FormValue(fieldLanguage)
	reply, err := s.interview.Opening(r.Context(), interview.OpeningRequest{
		ResumeText: resume,
		Scenario:   scenario,
		Language:   language,
		Plan:       s.snapshotPlan(r.FormValue(fieldPlan)),
	})
	if err != nil {
		s.logger.Error("Error generating opening: %v", err)
		s.writeError(w, gatewayStatus(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"reply":       reply,
		"resume_text": resume,
		"scenario":    scenario,
		"language":    language,
	})
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// decodeHistory parses the client's conversation. Malformed history is treated as empty.
func (s *Server) decodeHistory(raw string) []llm.CompletionMessage {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var wire []wireMessage
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		s.logger.Warn("Ignoring malformed history: %v", err)
		return nil
	}
	out := make([]llm.CompletionMessage, 0, len(wire))
	for _, m := range wire {
		role, err := llm.ParseRole(m.Role)
		if err != nil {
			s.logger.Warn("Dropping history message: %v", err)
			continue
		}
		out = append(out, llm.CompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// handleChat implements POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	difficulty := interview.DefaultDifficulty
	if v := r.FormValue(fieldDifficulty); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "difficulty must be an integer")
			return
		}
		difficulty = n
	}

	req := &interview.TurnRequest{
		SessionID:  r.FormValue(fieldSessionID),
		ResumeText: r.FormValue(fieldResume),
		Scenario:   r.FormValue(fieldScenario),
		Language:   r.FormValue(fieldLanguage),
		Difficulty: difficulty,
		History:    s.decodeHistory(r.FormValue(fieldHistory)),
		Plan:       s.snapshotPlan(r.FormValue(fieldPlan)),
		Transcript: r.FormValue(fieldTranscript),
	}
	if req.Transcript == "" {
		audio, err := formFile(r, fieldFile)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
			return
		}
		if audio != nil {
			req.Audio, req.AudioMIME = audio.data, audio.mimeType
		}
	}

	resp, err := s.interview.BeginTurn(r.Context(), req)
	switch {
	case errors.Is(err, interview.ErrNoAnswer), errors.Is(err, interview.ErrNoTranscriber):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("Chat Error: %v", err)
		s.writeError(w, gatewayStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handlePlanStatus implements GET /api/plan-status/{session_key}.
func (s *Server) handlePlanStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := s.interview.PollPlan(r.PathValue("session_key"))
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"plan": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plan": p})
}

// handleJournal implements GET /api/sessions/{session_key}/journal.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "evaluation journal is disabled")
		return
	}
	key := r.PathValue("session_key")
	entries, err := s.journal.ListBySession(r.Context(), key)
	if err != nil {
		s.logger.Error("Failed to read journal for %s: %v", key, err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session_key": key, "entries": entries})
}

// handleScenarios implements GET /api/scenarios.
func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	c := s.interview.Scenarios()
	s.writeJSON(w, http.StatusOK, struct {
		Default   string               `json:"default"`
		Scenarios []templates.Scenario `json:"scenarios"`
	}{c.Default, c.Scenarios})
}

// handleDifficulties implements GET /api/difficulties.
func (s *Server) handleDifficulties(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, interview.Presets())
}

// handleQuestionPacks implements GET /api/question-packs.
func (s *Server) handleQuestionPacks(w http.ResponseWriter, _ *http.Request) {
	packs, err := questionbank.Summaries()
	if err != nil {
		s.logger.Error("Failed to list question packs: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list question packs")
		return
	}
	s.writeJSON(w, http.StatusOK, packs)
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	inFlight := 0
	if s.scheduler != nil {
		inFlight = s.scheduler.InFlight()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.Version,
		"sessions":  s.store.Len(),
		"in_flight": inFlight,
		"providers": s.providers,
	})
}

// handleLogs implements GET /api/logs?component=&since=.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var since time.Time
	if v := query.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid since parameter (use RFC3339)")
			return
		}
		since = t
	}

	logs := logx.GetRecentLogEntries(query.Get("component"), since)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp < logs[j].Timestamp
	})
	if len(logs) > maxLogEntries {
		logs = logs[len(logs)-maxLogEntries:]
	}
	s.writeJSON(w, http.StatusOK, logs)
}

// handleUsage implements GET /api/usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.writeError(w, http.StatusNotFound, "usage reporting needs metrics.prometheus_url")
		return
	}
	usage, err := s.usage.UsageByProvider(r.Context())
	if err != nil {
		s.logger.Warn("Usage query failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "usage query failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}
