package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/askdesk/internal/config"
	"github.com/ziadkadry99/askdesk/internal/db"
	"github.com/ziadkadry99/askdesk/internal/gate"
	"github.com/ziadkadry99/askdesk/internal/grounding"
	"github.com/ziadkadry99/askdesk/internal/handoff"
	"github.com/ziadkadry99/askdesk/internal/llm"
	"github.com/ziadkadry99/askdesk/internal/logging"
	"github.com/ziadkadry99/askdesk/internal/retrieval"
	"github.com/ziadkadry99/askdesk/internal/session"
)

type fakeRetriever struct {
	mu    sync.Mutex
	resp  *retrieval.Response
	err   error
	delay time.Duration
	calls []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) (*retrieval.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	resp, err, delay := f.resp, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

type fakeGenerator struct {
	mu       sync.Mutex
	reply    func(req llm.CompletionRequest) (string, error)
	delay    time.Duration
	calls    []llm.CompletionRequest
	inFlight int
	maxSeen  int
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	reply, delay := f.reply, f.delay
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	text, err := reply(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: text}, nil
}

func (f *fakeGenerator) lastRequest() llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func replyWith(text string) func(llm.CompletionRequest) (string, error) {
	return func(llm.CompletionRequest) (string, error) { return text, nil }
}

type fixture struct {
	orch      *Orchestrator
	sessions  *session.Store
	retriever *fakeRetriever
	generator *fakeGenerator
	meta      *retrieval.MetaCache
}

func testConfig() Config {
	return Config{
		TopK:              3,
		RetrievalTimeout:  time.Second,
		GenerationTimeout: time.Second,
		MaxTurns:          6,
		Contact:           "staff@example.edu",
		RecordHandoffs:    true,
	}
}

func newFixture(t *testing.T, cfg Config, escalator Escalator) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  session.NewStore(session.Policy{}, logging.Discard()),
		retriever: &fakeRetriever{resp: &retrieval.Response{}},
		generator: &fakeGenerator{reply: replyWith("ok")},
		meta:      retrieval.NewMetaCache(),
	}
	orch, err := New(cfg, Deps{
		Sessions:  f.sessions,
		Retriever: f.retriever,
		Generator: f.generator,
		Gate:      gate.New(0.25, config.DefaultUncertaintyPhrases),
		Meta:      f.meta,
		Escalator: escalator,
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func officeHours() *retrieval.Response {
	return &retrieval.Response{
		Results: []retrieval.Hit{{ID: "c1", Text: "9am-5pm", Score: 0.8}},
		Meta:    retrieval.Meta{"pdfHash": "abc", "createdAt": "2025-01-01T00:00:00Z"},
	}
}

func TestChatEndToEnd(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.retriever.resp = officeHours()
	f.generator.reply = replyWith("Office hours are 9am-5pm.")

	res, err := f.orch.Chat(context.Background(), Request{Message: "What are office hours?"})
	require.NoError(t, err)

	assert.Equal(t, "Office hours are 9am-5pm.", res.ReplyText)
	assert.False(t, res.NeedsHuman)
	assert.Nil(t, res.ContactInfo)
	assert.Equal(t, []UsedChunk{{ID: "c1", Score: 0.8}}, res.UsedChunks)
	assert.True(t, strings.HasPrefix(res.SessionID, session.IDPrefix))
	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, "abc", res.Meta["pdfHash"])

	sess, ok := f.sessions.Get(res.SessionID)
	require.True(t, ok)
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "What are office hours?", msgs[0].Text)
	assert.Equal(t, "Office hours are 9am-5pm.", msgs[1].Text)

	sent := f.generator.lastRequest().Messages
	require.Len(t, sent, 2)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "[[c1]] 9am-5pm")
	assert.Contains(t, sent[0].Content, "lang=en-US")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What are office hours?"}, sent[1])
}

func TestChatResultWireFormat(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.retriever.resp = &retrieval.Response{}

	res, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.ElementsMatch(t,
		[]string{"reply_text", "needsHuman", "contactInfo", "conversationId", "usedChunks", "meta", "sessionId"},
		keys(wire))
	assert.Equal(t, []any{}, wire["usedChunks"])
	assert.Nil(t, wire["meta"])
	assert.Equal(t, "staff@example.edu", wire["contactInfo"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestChatEmptyMessage(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	_, err := f.orch.Chat(context.Background(), Request{Message: "first", SessionID: "s1"})
	require.NoError(t, err)

	for _, msg := range []string{"", "   \n"} {
		_, err := f.orch.Chat(context.Background(), Request{Message: msg, SessionID: "s1"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	sess, _ := f.sessions.Get("s1")
	assert.Equal(t, 2, sess.Len())
	assert.Len(t, f.generator.calls, 1)
	assert.Len(t, f.retriever.calls, 1)
}

func TestChatEmptyMessageCreatesNoSession(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	_, err := f.orch.Chat(context.Background(), Request{Message: "", SessionID: "new"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestChatGenerationFailureLeavesHistory(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	_, err := f.orch.Chat(context.Background(), Request{Message: "first", SessionID: "s1"})
	require.NoError(t, err)

	f.generator.reply = func(llm.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}
	_, err = f.orch.Chat(context.Background(), Request{Message: "second", SessionID: "s1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "connection refused")

	sess, _ := f.sessions.Get("s1")
	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
}

func TestChatEmptyReplyIsUpstreamFailure(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.generator.reply = replyWith("  ")

	_, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	sess, _ := f.sessions.Get("s1")
	assert.Equal(t, 0, sess.Len())
}

func TestChatGenerationTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationTimeout = 20 * time.Millisecond
	f := newFixture(t, cfg, nil)
	f.generator.delay = time.Second

	start := time.Now()
	_, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestChatRetrievalFailureDegrades(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.retriever.resp = officeHours()
	_, err := f.orch.Chat(context.Background(), Request{Message: "warm up", SessionID: "s1"})
	require.NoError(t, err)

	f.retriever.resp = nil
	f.retriever.err = errors.New("retriever down")
	f.generator.reply = replyWith("Office hours are 9am-5pm.")

	res, err := f.orch.Chat(context.Background(), Request{Message: "What are office hours?", SessionID: "s1"})
	require.NoError(t, err)

	assert.Empty(t, res.UsedChunks)
	assert.NotNil(t, res.UsedChunks)
	assert.True(t, res.NeedsHuman, "no hits means top score 0, below threshold")
	assert.Equal(t, []gate.Reason{gate.ReasonLowRelevance}, res.Reasons)
	assert.Equal(t, "abc", res.Meta["pdfHash"], "failed retrieval keeps the previous meta")

	system := f.generator.lastRequest().Messages[0].Content
	assert.True(t, strings.HasSuffix(system, grounding.NoContext))
}

func TestChatRetrievalTimeoutDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.RetrievalTimeout = 20 * time.Millisecond
	f := newFixture(t, cfg, nil)
	f.retriever.resp = officeHours()
	f.retriever.delay = time.Second

	res, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)
	assert.Empty(t, res.UsedChunks)
	assert.Nil(t, res.Meta)
}

func TestChatLowRelevanceOverridesConfidentReply(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.retriever.resp = &retrieval.Response{Results: []retrieval.Hit{{ID: "c9", Text: "parking", Score: 0.1}}}
	f.generator.reply = replyWith("Office hours are 9am-5pm.")

	res, err := f.orch.Chat(context.Background(), Request{Message: "hours?"})
	require.NoError(t, err)
	assert.True(t, res.NeedsHuman)
	require.NotNil(t, res.ContactInfo)
	assert.Equal(t, "staff@example.edu", *res.ContactInfo)
}

func TestChatUncertainReplyOverridesHighScore(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.retriever.resp = &retrieval.Response{Results: []retrieval.Hit{{ID: "c1", Text: "x", Score: 0.9}}}
	f.generator.reply = replyWith("Sorry, I don't know.")

	res, err := f.orch.Chat(context.Background(), Request{Message: "who is the dean?"})
	require.NoError(t, err)
	assert.True(t, res.NeedsHuman)
	assert.Equal(t, []gate.Reason{gate.ReasonUncertainAnswer}, res.Reasons)
}

func TestChatReplaysHistory(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.generator.reply = func(req llm.CompletionRequest) (string, error) {
		return fmt.Sprintf("answer %d", len(req.Messages)), nil
	}

	first, err := f.orch.Chat(context.Background(), Request{Message: "one"})
	require.NoError(t, err)
	second, err := f.orch.Chat(context.Background(), Request{Message: "two", SessionID: first.SessionID, Lang: "hi-IN"})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	sent := f.generator.lastRequest().Messages
	require.Len(t, sent, 4)
	assert.Contains(t, sent[0].Content, "lang=hi-IN")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "one"}, sent[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "answer 2"}, sent[2])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "two"}, sent[3])
}

func TestChatTrimsHistory(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTurns = 2
	f := newFixture(t, cfg, nil)

	for i := 0; i < 5; i++ {
		_, err := f.orch.Chat(context.Background(), Request{Message: fmt.Sprintf("q%d", i), SessionID: "s1"})
		require.NoError(t, err)
	}

	sess, _ := f.sessions.Get("s1")
	msgs := sess.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "q3", msgs[0].Text)
	assert.Equal(t, "q4", msgs[2].Text)
}

func TestChatZeroMaxTurnsKeepsNoHistory(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTurns = 0
	f := newFixture(t, cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := f.orch.Chat(context.Background(), Request{Message: "q", SessionID: "s1"})
		require.NoError(t, err)
	}
	sess, _ := f.sessions.Get("s1")
	assert.Equal(t, 0, sess.Len())
	assert.Len(t, f.generator.lastRequest().Messages, 2)
}

func TestChatPanicIsInternal(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.generator.reply = func(llm.CompletionRequest) (string, error) {
		panic("boom")
	}

	_, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrInternal)

	sess, _ := f.sessions.Get("s1")
	assert.Equal(t, 0, sess.Len())

	// The session lock must have been released.
	f.generator.reply = replyWith("fine")
	_, err = f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	assert.NoError(t, err)
}

func TestChatSerializesSameSession(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.generator.delay = 5 * time.Millisecond
	f.generator.reply = func(req llm.CompletionRequest) (string, error) {
		return "re: " + req.Messages[len(req.Messages)-1].Content, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.Chat(context.Background(), Request{Message: fmt.Sprintf("m%d", i), SessionID: "shared"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.generator.maxSeen)
	sess, _ := f.sessions.Get("shared")
	msgs := sess.Messages()
	require.Len(t, msgs, 12)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, "re: "+msgs[i].Text, msgs[i+1].Text)
	}
}

func TestChatDifferentSessionsRunConcurrently(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	f.generator.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: fmt.Sprintf("s%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Greater(t, f.generator.maxSeen, 1)
}

func TestChatCanceledWhileWaitingForSession(t *testing.T) {
	f := newFixture(t, testConfig(), nil)
	_, sess := f.sessions.Resolve("busy")
	release, err := sess.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.orch.Chat(ctx, Request{Message: "hi", SessionID: "busy"})
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.generator.calls)
}

func TestChatRecordsHandoff(t *testing.T) {
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	store := handoff.NewStore(database)

	f := newFixture(t, testConfig(), store)
	f.generator.reply = replyWith("I don't know.")

	res, err := f.orch.Chat(context.Background(), Request{Message: "where is room 101?", SessionID: "s1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.HandoffID)

	got, err := store.Get(context.Background(), res.HandoffID)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, res.ConversationID, got.ConversationID)
	assert.Equal(t, handoff.SourceAutomatic, got.Source)
	assert.Equal(t, "low_relevance,uncertain_answer", got.Reason)
	assert.Equal(t, "where is room 101?", got.Question)
}

type failingEscalator struct{}

func (failingEscalator) Create(context.Context, handoff.Request) (*handoff.Request, error) {
	return nil, errors.New("database is locked")
}

func TestChatHandoffFailureDoesNotFailChat(t *testing.T) {
	f := newFixture(t, testConfig(), failingEscalator{})
	res, err := f.orch.Chat(context.Background(), Request{Message: "hi", SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, res.NeedsHuman)
	assert.Empty(t, res.HandoffID)

	sess, _ := f.sessions.Get("s1")
	assert.Equal(t, 2, sess.Len())
}

type nilEscalator struct{}

func (nilEscalator) Create(context.Context, handoff.Request) (*handoff.Request, error) {
	return nil, nil
}

type panickingEscalator struct{}

func (panickingEscalator) Create(context.Context, handoff.Request) (*handoff.Request, error) {
	panic("escalator exploded")
}

func TestChatMisbehavingEscalator(t *testing.T) {
	tests := []struct {
		name      string
		escalator Escalator
	}{
		{"nil request without error", nilEscalator{}},
		{"panic", panickingEscalator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testConfig(), tt.escalator)
			f.retriever.resp = officeHours()
			f.generator.reply = replyWith("I don't know.")

			res, err := f.orch.Chat(context.Background(), Request{Message: "who won in 1987?", SessionID: "s1"})
			require.NoError(t, err)
			assert.True(t, res.NeedsHuman)
			assert.Empty(t, res.HandoffID)

			// The result and the recorded history agree: one full exchange.
			sess, ok := f.sessions.Get("s1")
			require.True(t, ok)
			assert.Equal(t, 2, sess.Len())
		})
	}
}

func TestChatHandoffsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RecordHandoffs = false
	f := newFixture(t, cfg, failingEscalator{})
	res, err := f.orch.Chat(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.True(t, res.NeedsHuman)
	assert.Empty(t, res.HandoffID)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	got := ConfigFrom(cfg)
	assert.Equal(t, 3, got.TopK)
	assert.Equal(t, 8*time.Second, got.RetrievalTimeout)
	assert.Equal(t, 15*time.Second, got.GenerationTimeout)
	assert.Equal(t, 6, got.MaxTurns)
	assert.Equal(t, "staff@sihchatbot.com", got.Contact)
	assert.True(t, got.RecordHandoffs)
}
