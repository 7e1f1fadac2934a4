package interview

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/evaluation"
	"interviewer/pkg/gateway"
	"interviewer/pkg/llm"
	"interviewer/pkg/logx"
	"interviewer/pkg/mutation"
	"interviewer/pkg/plan"
	"interviewer/pkg/store"
	"interviewer/pkg/testkit"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []evaluation.Request
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req evaluation.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
}

func (d *recordingDispatcher) Requests() []evaluation.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]evaluation.Request(nil), d.requests...)
}

type fakeTranscriber struct {
	text string
	err  error
	mime string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, mimeType string) (string, error) {
	f.mime = mimeType
	return f.text, f.err
}

func newService(t *testing.T, client llm.LLMClient, d Dispatcher) (*Service, *store.MemoryStore) {
	t.Helper()
	gw, err := gateway.New([]gateway.Provider{{Name: "primary", Client: client}}, gateway.Defaults{})
	require.NoError(t, err)
	st := store.NewMemoryStore(4)
	svc, err := NewService(Config{Gateway: gw, Store: st, Scheduler: d})
	require.NoError(t, err)
	return svc, st
}

func TestDeriveSessionKey(t *testing.T) {
	a := DeriveSessionKey("", "Jane Doe, Go engineer", "tech_backend")
	assert.Len(t, a, 32)
	assert.Equal(t, a, DeriveSessionKey("", "Jane Doe, Go engineer", "tech_backend"))
	assert.NotEqual(t, a, DeriveSessionKey("", "Jane Doe, Go engineer", "tech_frontend"))

	// Only the resume prefix counts.
	long := strings.Repeat("简", SessionSeedRunes)
	assert.Equal(t, DeriveSessionKey("", long+"tail one", "s"), DeriveSessionKey("", long+"tail two", "s"))

	// An explicit session id wins over the resume.
	assert.Equal(t, DeriveSessionKey("abc", "resume one", "s"), DeriveSessionKey("abc", "resume two", "s"))
	assert.NotEqual(t, DeriveSessionKey("abc", "r", "s"), DeriveSessionKey("", "r", "s"))
}

func TestDifficultyPresets(t *testing.T) {
	assert.Equal(t, DefaultDifficulty, ClampDifficulty(0))
	assert.Equal(t, MinDifficulty, ClampDifficulty(-4))
	assert.Equal(t, MaxDifficulty, ClampDifficulty(42))
	assert.Equal(t, "Hell", PresetFor(99).Name)
	assert.Equal(t, 1, PresetFor(1).Level)

	all := Presets()
	require.Len(t, all, MaxDifficulty)
	for i, p := range all {
		assert.Equal(t, i+1, p.Level)
		assert.NotEmpty(t, p.Style)
		assert.NotEmpty(t, p.Tone)
	}
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "Next question?", StripThinking("<think>plan\nmore</think>\n Next question? "))
	assert.Equal(t, "a b", StripThinking("a<think>x</think> b"))
	assert.Equal(t, "plain", StripThinking("plain"))
}

func TestPlainTextExtractor(t *testing.T) {
	var x PlainTextExtractor
	assert.Equal(t, "hello", x.Extract([]byte("  hello\n"), "resume.txt"))
	assert.Equal(t, ExtractFailed, x.Extract([]byte("%PDF-1.4"), "Resume.PDF"))
	assert.Equal(t, "ok", x.Extract([]byte{'o', 0xff, 'k'}, "r.md"))
}

func TestBeginTurnHydratesAndDispatches(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse("<think>hmm</think>Good. Next: concurrency?"))
	d := &recordingDispatcher{}
	svc, st := newService(t, client, d)

	snapshot := testkit.SamplePlan()
	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{
		ResumeText: "Jane Doe",
		Scenario:   "tech_backend",
		Difficulty: 12,
		History:    []llm.CompletionMessage{llm.NewAssistantMessage("Introduce yourself")},
		Plan:       snapshot,
		Transcript: "I build Go services",
	})
	require.NoError(t, err)

	assert.Equal(t, "Good. Next: concurrency?", resp.Reply)
	assert.Equal(t, "I build Go services", resp.Transcript)
	assert.Equal(t, DeriveSessionKey("", "Jane Doe", "tech_backend"), resp.SessionKey)
	assert.False(t, resp.PlanUpdated)
	assert.False(t, resp.InterviewComplete)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, snapshot.Summary, resp.Plan.Summary)

	stored, ok := st.Get(resp.SessionKey)
	require.True(t, ok)
	assert.Len(t, stored.Sections, 2)

	sent := client.Calls()[0]
	require.Len(t, sent.Messages, 3)
	assert.Contains(t, sent.Messages[0].Content, "DIFFICULTY LEVEL 10/10 (Hell)")
	assert.Contains(t, sent.Messages[0].Content, "[ ] (ID: 1)")
	assert.Equal(t, AnswerPrefix+"I build Go services", sent.Messages[2].Content)
	assert.Empty(t, sent.Tools)

	reqs := d.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, resp.SessionKey, reqs[0].SessionKey)
	assert.Equal(t, 10, reqs[0].Difficulty)
	last := reqs[0].History[len(reqs[0].History)-1]
	assert.Equal(t, llm.RoleAssistant, last.Role)
	assert.Equal(t, "Good. Next: concurrency?", last.Content)
}

func TestBeginTurnPrefersStoredPlan(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse("ok"))
	svc, st := newService(t, client, &recordingDispatcher{})

	key := DeriveSessionKey("sess-1", "", "tech_backend")
	stored := testkit.SamplePlan().Clone()
	stored.Summary = "from store"
	st.Put(key, stored)

	stale := testkit.SamplePlan()
	stale.Summary = "from client"
	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{
		SessionID:  "sess-1",
		Scenario:   "tech_backend",
		Plan:       stale,
		Transcript: "answer",
	})
	require.NoError(t, err)
	assert.Equal(t, "from store", resp.Plan.Summary)
}

func TestBeginTurnWithoutPlanSkipsEvaluation(t *testing.T) {
	d := &recordingDispatcher{}
	svc, st := newService(t, testkit.NewMockLLMClient("m", testkit.TextResponse("hi")), d)

	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{Transcript: "hello"})
	require.NoError(t, err)
	assert.Nil(t, resp.Plan)
	assert.Empty(t, d.Requests())
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, DeriveSessionKey("", "", "tech_backend"), resp.SessionKey)
}

func TestBeginTurnIgnoresInvalidClientPlan(t *testing.T) {
	d := &recordingDispatcher{}
	svc, st := newService(t, testkit.NewMockLLMClient("m", testkit.TextResponse("hi")), d)

	broken := testkit.SamplePlan().Clone()
	broken.Sections[1].Items[0].ID = "1"
	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{
		SessionID:  "sess-dup",
		Plan:       &broken,
		Transcript: "hello",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Plan)
	assert.Empty(t, d.Requests())
	assert.Equal(t, 0, st.Len())
}

func TestBeginTurnAllItemsDoneAsksForClosing(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse(ClosingLine))
	d := &recordingDispatcher{}
	svc, _ := newService(t, client, d)

	done := testkit.SamplePlan().Clone()
	for si := range done.Sections {
		for ii := range done.Sections[si].Items {
			done.Sections[si].Items[ii].Status = plan.StatusDone
		}
	}
	_, err := svc.BeginTurn(context.Background(), &TurnRequest{SessionID: "sess-done", Plan: &done, Transcript: "that's all"})
	require.NoError(t, err)

	system := client.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "Do NOT ask another question")
	assert.Contains(t, system, ClosingLine)
	// The evaluator still has to close the interview.
	assert.Len(t, d.Requests(), 1)
}

func TestBeginTurnCompletedInterviewSkipsEvaluation(t *testing.T) {
	d := &recordingDispatcher{}
	svc, st := newService(t, testkit.NewMockLLMClient("m", testkit.TextResponse(ClosingLine)), d)

	key := DeriveSessionKey("sess-closed", "", "tech_backend")
	closed := testkit.SamplePlan().Clone()
	closed.InterviewComplete = true
	closed.FinalResult = &plan.FinalResult{FinalScore: 77, Summary: "done"}
	st.Put(key, closed)

	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{SessionID: "sess-closed", Transcript: "anything else?"})
	require.NoError(t, err)
	assert.True(t, resp.InterviewComplete)
	require.NotNil(t, resp.FinalResult)
	assert.Equal(t, 77, resp.FinalResult.FinalScore)
	assert.Empty(t, d.Requests())
}

func TestBeginTurnAnswerSources(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse("ok"))
	svc, _ := newService(t, client, &recordingDispatcher{})

	_, err := svc.BeginTurn(context.Background(), &TurnRequest{})
	assert.ErrorIs(t, err, ErrNoAnswer)

	_, err = svc.BeginTurn(context.Background(), &TurnRequest{Audio: []byte("RIFF")})
	assert.ErrorIs(t, err, ErrNoTranscriber)

	tr := &fakeTranscriber{text: " spoken answer "}
	svc.transcriber = tr
	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{Audio: []byte("RIFF")})
	require.NoError(t, err)
	assert.Equal(t, "spoken answer", resp.Transcript)
	assert.Equal(t, "audio/wav", tr.mime)

	svc.transcriber = &fakeTranscriber{err: errors.New("asr down")}
	_, err = svc.BeginTurn(context.Background(), &TurnRequest{Audio: []byte("RIFF"), AudioMIME: "audio/webm"})
	assert.ErrorContains(t, err, "asr down")
}

func TestBeginTurnGatewayExhausted(t *testing.T) {
	svc, _ := newService(t, testkit.NewFailingClient("m", errors.New("502 bad gateway")), &recordingDispatcher{})

	_, err := svc.BeginTurn(context.Background(), &TurnRequest{Transcript: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrAllProvidersFailed)
}

func TestBeginTurnThenPollSeesEvaluation(t *testing.T) {
	client := testkit.NewMockLLMClient("m")
	client.CompleteFunc = func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		if len(req.Tools) > 0 {
			return testkit.ToolResponse(testkit.Call(mutation.ToolMarkItemComplete,
				`{"item_id":"1","score":88,"evaluation":"clear","suggestion":"none"}`)), nil
		}
		return testkit.TextResponse("Thanks. Tell me about a concurrency bug."), nil
	}

	gw, err := gateway.New([]gateway.Provider{{Name: "primary", Client: client}}, gateway.Defaults{})
	require.NoError(t, err)
	st := store.NewMemoryStore(4)
	ev, err := evaluation.New(evaluation.Config{Gateway: gw, Store: st, Repair: mutation.DefaultScoreRepair()})
	require.NoError(t, err)
	sched := evaluation.NewScheduler(ev)
	svc, err := NewService(Config{Gateway: gw, Store: st, Scheduler: sched})
	require.NoError(t, err)

	resp, err := svc.BeginTurn(context.Background(), &TurnRequest{
		ResumeText: "Jane",
		Plan:       testkit.SamplePlan(),
		Transcript: "I am Jane",
	})
	require.NoError(t, err)
	next, ok := resp.Plan.NextPending()
	require.True(t, ok)
	assert.Equal(t, "1", next.ID)

	require.True(t, sched.Wait(5*time.Second))

	polled, ok := svc.PollPlan(resp.SessionKey)
	require.True(t, ok)
	next, ok = polled.NextPending()
	require.True(t, ok)
	assert.Equal(t, "2", next.ID)

	_, ok = svc.PollPlan("unknown")
	assert.False(t, ok)
}

func TestGeneratePlan(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse(testkit.SamplePlanJSON))
	svc, _ := newService(t, client, &recordingDispatcher{})

	res, err := svc.GeneratePlan(context.Background(), PlanRequest{Scenario: "tech_backend", Language: "en-US"})
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	assert.Nil(t, res.Failure)
	assert.Equal(t, NoContextResume, res.ResumeText)
	assert.Len(t, res.Plan.Sections, 2)

	sent := client.Calls()[0]
	require.Len(t, sent.Messages, 2)
	assert.Contains(t, sent.Messages[0].Content, "MUST be in en-US")
	assert.Contains(t, sent.Messages[1].Content, NoContextResume)
}

func TestGeneratePlanWithQuestionPack(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse(testkit.SamplePlanJSON))
	svc, _ := newService(t, client, &recordingDispatcher{})

	_, err := svc.GeneratePlan(context.Background(), PlanRequest{ResumeText: "r", QuestionPack: "go_backend"})
	require.NoError(t, err)
	assert.Contains(t, client.Calls()[0].Messages[0].Content, "[Question Bank START]")

	_, err = svc.GeneratePlan(context.Background(), PlanRequest{ResumeText: "r", QuestionPack: "../etc"})
	assert.Error(t, err)
}

func TestGeneratePlanParseFailure(t *testing.T) {
	var logs bytes.Buffer
	logx.SetOutput(&logs)
	t.Cleanup(func() { logx.SetOutput(nil) })

	svc, _ := newService(t, testkit.NewMockLLMClient("m", testkit.TextResponse("Sorry, I cannot help.")), &recordingDispatcher{})

	res, err := svc.GeneratePlan(context.Background(), PlanRequest{ResumeText: "r"})
	require.NoError(t, err)
	assert.Nil(t, res.Plan)
	require.NotNil(t, res.Failure)
	assert.Equal(t, "Sorry, I cannot help.", res.Failure.Raw)
	assert.Contains(t, logs.String(), "plan parse failed: no JSON object found")
}

func TestOpeningAsksFirstPendingItem(t *testing.T) {
	client := testkit.NewMockLLMClient("m", testkit.TextResponse("<think>x</think>Hi, I'm your interviewer. Please introduce yourself."))
	svc, _ := newService(t, client, &recordingDispatcher{})

	p := testkit.SamplePlan().Clone()
	p.Sections[0].Items[0].Status = plan.StatusDone

	reply, err := svc.Opening(context.Background(), OpeningRequest{ResumeText: strings.Repeat("r", 900), Plan: &p})
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm your interviewer. Please introduce yourself.", reply)

	system := client.Calls()[0].Messages[0].Content
	assert.Contains(t, system, "Discuss a concurrency bug they fixed")
	assert.NotContains(t, system, strings.Repeat("r", OpeningContextRune+1))

	_, err = svc.Opening(context.Background(), OpeningRequest{})
	require.NoError(t, err)
	assert.Contains(t, client.Calls()[1].Messages[0].Content, "No plan provided")
}
