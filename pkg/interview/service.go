// Package interview orchestrates an interview session: it generates the plan, opens the
// conversation, answers each candidate turn and hands the turn to the background
// evaluator.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interviewer/pkg/evaluation"
	"interviewer/pkg/gateway"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/plan"
	"interviewer/pkg/questionbank"
	"interviewer/pkg/store"
	"interviewer/pkg/templates"
	"interviewer/pkg/utils"
)

// ErrNoAnswer is returned when a turn carries neither a transcript nor audio.
var ErrNoAnswer = errors.New("no audio file or transcript provided")

// ErrNoTranscriber is returned when audio arrives but transcription is disabled.
var ErrNoTranscriber = errors.New("audio transcription is not configured")

const (
	// AnswerPrefix marks the candidate's answer in the conversation sent to the model.
	AnswerPrefix = "[User's Spoken Answer Transcribed]:\n"
	// ClosingLine is what the interviewer says once every item is done.
	ClosingLine = "The interview has ended. Thank you for your participation."

	DefaultLanguage = "en-US"

	// Resume text is cut before it goes into a prompt.
	ResumeTokenLimit   = 6000
	OpeningContextRune = 500
	OpeningRequestRune = 300

	planStatusHeader = "CURRENT INTERVIEW PLAN STATUS:\n"
)

// Completer is the part of the gateway the orchestrator needs.
type Completer interface {
	Execute(ctx context.Context, messages []llm.CompletionMessage, tools []llm.ToolDefinition, opts ...gateway.Option) (gateway.Result, error)
}

// Dispatcher starts background evaluation passes.
type Dispatcher interface {
	Dispatch(ctx context.Context, req evaluation.Request)
}

// Config wires a Service. Transcriber, Metrics and Extractor are optional.
type Config struct {
	Gateway     Completer
	Store       store.Store
	Scheduler   Dispatcher
	Renderer    *templates.Renderer
	Scenarios   *templates.Catalogue
	Transcriber Transcriber
	Extractor   TextExtractor
	Metrics     *metrics.Service
}

// Service answers interview requests.
type Service struct {
	gateway     Completer
	store       store.Store
	scheduler   Dispatcher
	renderer    *templates.Renderer
	scenarios   *templates.Catalogue
	transcriber Transcriber
	extractor   TextExtractor
	metrics     *metrics.Service
	logger      *logx.Logger
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Gateway == nil || cfg.Store == nil || cfg.Scheduler == nil {
		return nil, fmt.Errorf("interview: gateway, store and scheduler are required")
	}
	if cfg.Renderer == nil {
		r, err := templates.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("interview: load templates: %w", err)
		}
		cfg.Renderer = r
	}
	if cfg.Scenarios == nil {
		c, err := templates.Scenarios()
		if err != nil {
			return nil, fmt.Errorf("interview: load scenarios: %w", err)
		}
		cfg.Scenarios = c
	}
	if cfg.Extractor == nil {
		cfg.Extractor = PlainTextExtractor{}
	}
	return &Service{
		gateway:     cfg.Gateway,
		store:       cfg.Store,
		scheduler:   cfg.Scheduler,
		renderer:    cfg.Renderer,
		scenarios:   cfg.Scenarios,
		transcriber: cfg.Transcriber,
		extractor:   cfg.Extractor,
		metrics:     cfg.Metrics,
		logger:      logx.NewLogger("interview"),
	}, nil
}

// Scenarios returns the catalogue the service resolves scenario ids against.
func (s *Service) Scenarios() *templates.Catalogue {
	return s.scenarios
}

// ExtractResume returns resume text from an upload, else manual text, trimmed.
func (s *Service) ExtractResume(data []byte, filename, manual string) string {
	if len(data) > 0 {
		return s.extractor.Extract(data, filename)
	}
	return strings.TrimSpace(manual)
}

// TurnRequest is one candidate answer.
type TurnRequest struct {
	SessionID  string
	ResumeText string
	Scenario   string
	Language   string
	Difficulty int
	History    []llm.CompletionMessage
	// Plan is the caller's last known plan, used only when the store has none.
	Plan       *plan.Plan
	Transcript string
	Audio      []byte
	AudioMIME  string
}

// TurnResponse is the interviewer's reply and the plan as it stood when the turn began.
type TurnResponse struct {
	Reply             string            `json:"reply"`
	Transcript        string            `json:"transcript"`
	Plan              *plan.Plan        `json:"plan_update"`
	SessionKey        string            `json:"session_key"`
	// PlanUpdated is always false: the turn's evaluation runs after the reply is
	// sent. Clients learn about updates from the plan-status poll.
	PlanUpdated       bool              `json:"plan_updated"`
	InterviewComplete bool              `json:"interview_complete"`
	FinalResult       *plan.FinalResult `json:"final_result"`
	Provider          string            `json:"-"`
}

// BeginTurn answers a candidate turn and schedules evaluation of it without waiting.
// The returned plan does not reflect that evaluation; poll PollPlan for it.
func (s *Service) BeginTurn(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	transcript, err := s.answerText(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNoAnswer) {
			s.metrics.Turn(metrics.TurnNoAnswer)
		}
		return nil, err
	}

	req.Scenario = s.scenarioID(req.Scenario)
	key := DeriveSessionKey(req.SessionID, req.ResumeText, req.Scenario)
	ctx = logx.WithSessionKey(ctx, key)
	current := s.resolvePlan(ctx, key, req.Plan)

	difficulty := ClampDifficulty(req.Difficulty)
	system, err := s.chatPrompt(req.Scenario, difficulty, &current)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.CompletionMessage, 0, len(req.History)+2)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, req.History...)
	messages = append(messages, llm.NewUserMessage(AnswerPrefix+transcript))

	out, err := s.gateway.Execute(llm.WithPurpose(ctx, "chat"), messages, nil)
	if err != nil {
		s.metrics.Turn(metrics.TurnProviderFail)
		return nil, fmt.Errorf("chat turn: %w", err)
	}
	reply := StripThinking(out.Text)
	s.logger.Info("session %s: reply from %s (%d chars)", key[:8], out.Provider, len(reply))

	// A completed interview is final; further passes could not change it.
	if current.HasSections() && !current.InterviewComplete {
		evalHistory := make([]llm.CompletionMessage, 0, len(messages)+1)
		evalHistory = append(evalHistory, messages...)
		evalHistory = append(evalHistory, llm.NewAssistantMessage(reply))
		s.scheduler.Dispatch(ctx, evaluation.Request{
			SessionKey: key,
			History:    evalHistory,
			ResumeText: req.ResumeText,
			Plan:       current.Clone(),
			Scenario:   req.Scenario,
			Difficulty: difficulty,
		})
	}
	s.metrics.Turn(metrics.TurnOK)

	resp := &TurnResponse{
		Reply:             reply,
		Transcript:        transcript,
		SessionKey:        key,
		InterviewComplete: current.InterviewComplete,
		FinalResult:       current.FinalResult,
		Provider:          out.Provider,
	}
	if current.HasSections() {
		resp.Plan = &current
	}
	return resp, nil
}

func (s *Service) answerText(ctx context.Context, req *TurnRequest) (string, error) {
	if t := strings.TrimSpace(req.Transcript); t != "" {
		return t, nil
	}
	if len(req.Audio) == 0 {
		return "", ErrNoAnswer
	}
	if s.transcriber == nil {
		return "", ErrNoTranscriber
	}
	mime := req.AudioMIME
	if mime == "" {
		mime = "audio/wav"
	}
	text, err := s.transcriber.Transcribe(ctx, req.Audio, mime)
	if err != nil {
		return "", fmt.Errorf("transcribe answer: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// resolvePlan prefers the stored plan; otherwise it seeds the store from the caller's
// snapshot when that snapshot is a valid plan.
func (s *Service) resolvePlan(ctx context.Context, key string, snapshot *plan.Plan) plan.Plan {
	if stored, ok := s.store.Get(key); ok {
		logx.Debug(ctx, "interview", "using stored plan")
		return stored
	}
	if snapshot == nil || !snapshot.HasSections() {
		return plan.Plan{}
	}
	if err := snapshot.Validate(); err != nil {
		s.logger.Warn("session %s: ignoring client plan: %v", key[:8], err)
		return plan.Plan{}
	}
	logx.Debug(ctx, "interview", "hydrating store from client plan")
	return s.store.GetOrInit(key, *snapshot)
}

func (s *Service) chatPrompt(scenarioID string, difficulty int, p *plan.Plan) (string, error) {
	scenario := s.scenarios.Lookup(scenarioID)
	preset := PresetFor(difficulty)
	return s.renderer.Render(templates.ChatTemplate, templates.ChatData{
		ScenarioPrompt: s.scenarios.SystemPrompt(&scenario),
		Difficulty:     difficulty,
		PresetName:     preset.Name,
		Style:          preset.Style,
		Tone:           preset.Tone,
		PlanStatus:     planStatusHeader + p.Render(plan.StyleChecklist),
		Summary:        p.Summary,
		ClosingLine:    ClosingLine,
		AllDone:        p.AllDone(),
	})
}

// scenarioID defaults an empty scenario to the catalogue default. Unknown ids are kept
// so they still separate session keys; prompts fall back to the default scenario.
func (s *Service) scenarioID(id string) string {
	if id == "" {
		return s.scenarios.Default
	}
	return id
}

// PollPlan returns the current plan for key.
func (s *Service) PollPlan(key string) (plan.Plan, bool) {
	return s.store.Get(key)
}

// PlanRequest asks for a new interview plan.
type PlanRequest struct {
	ResumeText string
	Scenario   string
	Language   string
	// QuestionPack optionally names an embedded question pack to draw from.
	QuestionPack string
}

// PlanResult is either a parsed plan or the raw model text that failed to parse.
type PlanResult struct {
	ResumeText string
	Scenario   string
	Plan       *plan.Plan
	Failure    *plan.ParseFailure
	Provider   string
}

// GeneratePlan asks the model for a structured plan. A reply that does not parse is not
// an error: the result carries the failure and the raw text instead of a plan.
func (s *Service) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	resume := strings.TrimSpace(req.ResumeText)
	if resume == "" {
		resume = NoContextResume
	}
	language := req.Language
	if language == "" {
		language = DefaultLanguage
	}
	req.Scenario = s.scenarioID(req.Scenario)
	scenario := s.scenarios.Lookup(req.Scenario)

	data := templates.PlanData{
		ScenarioPrompt: s.scenarios.SystemPrompt(&scenario),
		ScenarioName:   scenario.Name,
		Role:           scenario.Role,
		Language:       language,
		ResumeText:     utils.DefaultCounter().TruncateToTokenLimit(resume, ResumeTokenLimit),
	}
	if req.QuestionPack != "" {
		pack, err := questionbank.Get(req.QuestionPack)
		if err != nil {
			return nil, fmt.Errorf("question pack: %w", err)
		}
		rendered, err := questionbank.RenderForPrompt(pack, questionbank.DefaultMaxQuestions)
		if err != nil {
			return nil, fmt.Errorf("question pack: %w", err)
		}
		data.QuestionPack = rendered
	}

	system, err := s.renderer.Render(templates.PlanTemplate, data)
	if err != nil {
		return nil, err
	}
	user, err := s.renderer.Render(templates.PlanRequestTemplate, data)
	if err != nil {
		return nil, err
	}

	out, err := s.gateway.Execute(llm.WithPurpose(ctx, "plan"),
		[]llm.CompletionMessage{llm.NewSystemMessage(system), llm.NewUserMessage(user)}, nil)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	parsed := plan.Parse(StripThinking(out.Text))
	s.metrics.PlanGeneration(parsed.OK())
	res := &PlanResult{
		ResumeText: resume,
		Scenario:   req.Scenario,
		Plan:       parsed.Plan,
		Failure:    parsed.Failure,
		Provider:   out.Provider,
	}
	if err := parsed.Err(); err != nil {
		s.logger.Warn("plan from %s: %v", out.Provider, err)
	}
	return res, nil
}

// OpeningRequest asks for the interviewer's first line.
type OpeningRequest struct {
	ResumeText string
	Scenario   string
	Language   string
	Plan       *plan.Plan
}

// Opening introduces the interviewer and asks the plan's first pending item.
func (s *Service) Opening(ctx context.Context, req OpeningRequest) (string, error) {
	resume := strings.TrimSpace(req.ResumeText)
	if resume == "" {
		resume = NoResume
	}
	scenario := s.scenarios.Lookup(req.Scenario)

	var first string
	if req.Plan != nil {
		if item, ok := req.Plan.NextPending(); ok {
			first = item.Content
		}
	}

	system, err := s.renderer.Render(templates.OpeningTemplate, templates.OpeningData{
		ScenarioPrompt: s.scenarios.SystemPrompt(&scenario),
		Role:           scenario.Role,
		FirstQuestion:  first,
		Context:        plan.Truncate(resume, OpeningContextRune),
	})
	if err != nil {
		return "", err
	}
	user := "Generate the opening with the first question. Candidate context: " +
		plan.Truncate(resume, OpeningRequestRune)

	out, err := s.gateway.Execute(llm.WithPurpose(ctx, "chat"),
		[]llm.CompletionMessage{llm.NewSystemMessage(system), llm.NewUserMessage(user)}, nil)
	if err != nil {
		return "", fmt.Errorf("opening line: %w", err)
	}
	return StripThinking(out.Text), nil
}
