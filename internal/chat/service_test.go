package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clairehq/claire/internal/llm"
	"github.com/clairehq/claire/internal/memory"
	"github.com/clairehq/claire/internal/rag"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
}

type fakeSearchStore struct {
	matches []rag.Match
	lastK   int
	calls   int
}

func (f *fakeSearchStore) Search(_ context.Context, _ []float32, maxResults int, _ float64) ([]rag.Match, error) {
	f.calls++
	f.lastK = maxResults
	return f.matches, nil
}

// fakeGenerator serves single-shot calls from answer and streaming calls by
// replaying fragments. A non-nil gate blocks Generate until the gate closes,
// for concurrency tests.
type fakeGenerator struct {
	answer    string
	fragments []string
	err       error
	gate      chan struct{}
	calls     int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStream(_ context.Context, _ string) (<-chan llm.Fragment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan llm.Fragment, len(f.fragments)+1)
	for _, text := range f.fragments {
		out <- llm.Fragment{Text: text}
	}
	out <- llm.Fragment{Done: true}
	close(out)
	return out, nil
}

type serviceFixture struct {
	svc      *Service
	gen      *fakeGenerator
	store    *fakeSearchStore
	embedder *fakeEmbedder
	mem      *memory.WindowStore
}

func newServiceFixture(t *testing.T, gen *fakeGenerator, matches []rag.Match) *serviceFixture {
	t.Helper()

	embedder := &fakeEmbedder{}
	store := &fakeSearchStore{matches: matches}
	retriever := rag.NewRetriever(embedder, store)
	transformer := rag.NewTransformer(gen)
	augmentor := rag.NewAugmentor(transformer, retriever, rag.DefaultPromptTemplate(), rag.DefaultAugmentorConfig())
	mem := memory.NewWindowStore(memory.DefaultMaxMessages)

	return &serviceFixture{
		svc:      NewService(augmentor, retriever, gen, mem, nil, 10),
		gen:      gen,
		store:    store,
		embedder: embedder,
		mem:      mem,
	}
}

func franceMatches() []rag.Match {
	return []rag.Match{
		{Segment: rag.Segment{Text: "Paris is the capital of France.", Metadata: map[string]string{"title": "France", "source": "wiki"}}, Score: 0.91},
		{Segment: rag.Segment{Text: "Lyon is a city in France.", Metadata: map[string]string{"title": "France"}}, Score: 0.40},
	}
}

func TestService_AnswerReturnsTextAndEvidence(t *testing.T) {
	gen := &fakeGenerator{answer: "The capital of France is Paris."}
	fx := newServiceFixture(t, gen, franceMatches())

	got, err := fx.svc.Answer(context.Background(), "s1", "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "The capital of France is Paris.", got.GeneratedAnswer)
	require.Len(t, got.RelevantDocuments, 1, "score floor drops the weak match")
	assert.Equal(t, "Paris is the capital of France.", got.RelevantDocuments[0].Text)
}

func TestService_AnswerCommitsBothTurns(t *testing.T) {
	gen := &fakeGenerator{answer: "Paris."}
	fx := newServiceFixture(t, gen, franceMatches())

	_, err := fx.svc.Answer(context.Background(), "s1", "Capital of France?")
	require.NoError(t, err)

	turns, err := fx.mem.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, memory.RoleUser, turns[0].Role)
	assert.Equal(t, "Capital of France?", turns[0].Content)
	assert.Equal(t, memory.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Paris.", turns[1].Content)
}

func TestService_EmptyQuestionRejectedBeforeBackends(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	fx := newServiceFixture(t, gen, nil)

	_, err := fx.svc.Answer(context.Background(), "s1", "   ")
	require.ErrorIs(t, err, ErrEmptyQuestion)

	_, _, err = fx.svc.AnswerStream(context.Background(), "s1", "")
	require.ErrorIs(t, err, ErrEmptyQuestion)

	assert.Zero(t, fx.embedder.calls)
	assert.Zero(t, fx.store.calls)
	assert.Zero(t, fx.gen.calls)
}

func TestService_ConcurrentQuestionSameSessionRejected(t *testing.T) {
	gate := make(chan struct{})
	gen := &fakeGenerator{answer: "slow answer", gate: gate}
	fx := newServiceFixture(t, gen, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := fx.svc.Answer(context.Background(), "s1", "first question")
		firstDone <- err
	}()

	// Wait for the first question to reach the blocked generator.
	require.Eventually(t, func() bool { return fx.gen.calls > 0 }, time.Second, time.Millisecond)

	_, err := fx.svc.Answer(context.Background(), "s1", "second question")
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(gate)
	require.NoError(t, <-firstDone)

	// The session frees up once the first question finishes.
	_, err = fx.svc.Answer(context.Background(), "s1", "third question")
	assert.NoError(t, err)
}

func TestService_DifferentSessionsRunIndependently(t *testing.T) {
	gate := make(chan struct{})
	gen := &fakeGenerator{answer: "answer", gate: gate}
	fx := newServiceFixture(t, gen, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := fx.svc.Answer(context.Background(), "a", "question for a")
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return fx.gen.calls > 0 }, time.Second, time.Millisecond)

	otherDone := make(chan error, 1)
	go func() {
		_, err := fx.svc.Answer(context.Background(), "b", "question for b")
		otherDone <- err
	}()

	close(gate)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-otherDone)
}

func TestService_StreamConcatMatchesSingleShot(t *testing.T) {
	const full = "The capital of France is Paris."
	gen := &fakeGenerator{
		answer:    full,
		fragments: []string{"The capital ", "of France ", "is Paris."},
	}
	fx := newServiceFixture(t, gen, franceMatches())

	single, err := fx.svc.Answer(context.Background(), "single", "Capital of France?")
	require.NoError(t, err)

	out, record, err := fx.svc.AnswerStream(context.Background(), "stream", "Capital of France?")
	require.NoError(t, err)

	var b strings.Builder
	sawDone := false
	for f := range out {
		require.NoError(t, f.Err)
		if f.Done {
			sawDone = true
			continue
		}
		b.WriteString(f.Text)
	}
	require.True(t, sawDone, "stream must end with an explicit terminal fragment")
	assert.Equal(t, single.GeneratedAnswer, b.String())

	record(b.String())
}

func TestService_RecordCommitsDeliveredText(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"Par", "is."}}
	fx := newServiceFixture(t, gen, nil)

	out, record, err := fx.svc.AnswerStream(context.Background(), "s1", "Capital of France?")
	require.NoError(t, err)

	var b strings.Builder
	for f := range out {
		b.WriteString(f.Text)
	}
	record(b.String())

	turns, err := fx.mem.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Capital of France?", turns[0].Content)
	assert.Equal(t, "Paris.", turns[1].Content)
}

func TestService_AbandonedStreamCommitsNothing(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"partial"}}
	fx := newServiceFixture(t, gen, nil)

	out, _, err := fx.svc.AnswerStream(context.Background(), "s1", "Capital of France?")
	require.NoError(t, err)

	// Drain without calling record, as a disconnecting client would.
	for range out {
	}

	turns, err := fx.mem.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestService_StreamSessionReleasedAfterDrain(t *testing.T) {
	gen := &fakeGenerator{answer: "next", fragments: []string{"hello"}}
	fx := newServiceFixture(t, gen, nil)

	out, _, err := fx.svc.AnswerStream(context.Background(), "s1", "first")
	require.NoError(t, err)
	for range out {
	}

	require.Eventually(t, func() bool {
		_, err := fx.svc.Answer(context.Background(), "s1", "second")
		return err == nil
	}, time.Second, time.Millisecond)
}

func TestService_GenerationFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: llm.ErrUnavailable}
	fx := newServiceFixture(t, gen, nil)

	_, err := fx.svc.Answer(context.Background(), "s1", "Capital of France?")
	require.ErrorIs(t, err, llm.ErrUnavailable)

	turns, err := fx.mem.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns, "nothing committed on failure")
}

func TestService_EvidenceIsBroadAndUnfiltered(t *testing.T) {
	matches := []rag.Match{
		{Segment: rag.Segment{Text: "strong", Metadata: map[string]string{"title": "t", "source": "s"}}, Score: 0.9},
		{Segment: rag.Segment{Text: "weak", Metadata: map[string]string{}}, Score: 0.2},
	}
	gen := &fakeGenerator{}
	fx := newServiceFixture(t, gen, matches)

	answers, err := fx.svc.Evidence(context.Background(), "anything")
	require.NoError(t, err)

	assert.Equal(t, 10, fx.store.lastK, "evidence path retrieves broadly")
	require.Len(t, answers, 2, "no score floor on the evidence path")
	assert.Equal(t, map[string]string{"title": "t", "source": "s"}, answers[0].Metadata, "full metadata preserved")
}

func TestService_ClearSession(t *testing.T) {
	gen := &fakeGenerator{answer: "Paris."}
	fx := newServiceFixture(t, gen, nil)

	_, err := fx.svc.Answer(context.Background(), "s1", "Capital of France?")
	require.NoError(t, err)
	require.NoError(t, fx.svc.ClearSession(context.Background(), "s1"))

	turns, err := fx.mem.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestGuard_AcquireRelease(t *testing.T) {
	g := newGuard()

	require.True(t, g.tryAcquire("s1"))
	assert.False(t, g.tryAcquire("s1"))
	assert.True(t, g.tryAcquire("s2"))

	g.release("s1")
	assert.True(t, g.tryAcquire("s1"))
}
