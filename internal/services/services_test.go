package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/stash/internal/analysis"
	apperrors "github.com/kimhsiao/stash/internal/errors"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/store"
)

// fakeAnalyzer returns canned replies and can block until released.
type fakeAnalyzer struct {
	mu        sync.Mutex
	result    analysis.Result
	insight   string
	calls     int
	excerpts  []string
	question  string
	release   chan struct{}
	onAnalyze func()
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, content string, t models.BlockType) analysis.Result {
	f.mu.Lock()
	f.calls++
	hook := f.onAnalyze
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return analysis.FailedResult()
		}
	}
	return f.result
}

func (f *fakeAnalyzer) FindConnections(ctx context.Context, question string, excerpts []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.question = question
	f.excerpts = excerpts
	return f.insight
}

func newService(t *testing.T, fa *fakeAnalyzer) (*AnalysisService, *store.Store) {
	t.Helper()
	st := store.New(models.DefaultDocument(1))
	return NewAnalysisService(st, fa, &AnalysisConfig{Timeout: time.Second}), st
}

// =====================================================
// Preview / CreateBlock
// =====================================================

func TestPreview(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.Result{Title: "T", Tags: []string{"a"}}}
	svc, st := newService(t, fa)

	res, err := svc.Preview(context.Background(), "hello", models.BlockTypeText)
	require.NoError(t, err)
	assert.Equal(t, "T", res.Title)
	assert.Empty(t, st.Snapshot().Blocks)

	_, err = svc.Preview(context.Background(), "  ", models.BlockTypeText)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.Preview(context.Background(), "data:image/png;base64,AA", models.BlockTypeImage)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, 1, fa.calls)
}

func TestCreateBlock(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.Result{Title: "Go", Summary: "Lang.", Tags: []string{"go"}}}
	svc, _ := newService(t, fa)

	b, err := svc.CreateBlock(context.Background(), "https://go.dev", models.BlockTypeLink, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Go", *b.Title)
	assert.Equal(t, []string{"go"}, b.Tags)

	b, err = svc.CreateBlock(context.Background(), "plain", models.BlockTypeText, false, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, b.Title)

	b, err = svc.CreateBlock(context.Background(), "pre", models.BlockTypeText, true, &store.AIData{Title: "Given"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Given", *b.Title)

	_, err = svc.CreateBlock(context.Background(), "data:image/png;base64,AA", models.BlockTypeImage, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fa.calls)
}

// =====================================================
// AnalyzeBlock
// =====================================================

func TestAnalyzeBlock_AppliesResultAndFiresCallbacks(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.Result{Title: "Grids", Summary: "S", Tags: []string{"design"}}}
	svc, st := newService(t, fa)
	b, err := st.AddBlock("grid notes", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	var events []string
	svc.SetEventCallbacks(
		func(id string) { events = append(events, "started:"+id) },
		func(id string, _ models.Block) { events = append(events, "completed:"+id) },
		func(id string, _ error) { events = append(events, "failed:"+id) },
	)

	updated, err := svc.AnalyzeBlock(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grids", *updated.Title)
	assert.Equal(t, []string{"started:" + b.ID, "completed:" + b.ID}, events)
}

func TestAnalyzeBlock_FailureSentinelIsApplied(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.FailedResult()}
	svc, st := newService(t, fa)
	b, err := st.AddBlock("x", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	updated, err := svc.AnalyzeBlock(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Block", *updated.Title)
	assert.Equal(t, []string{"uncategorized"}, updated.Tags)
}

func TestAnalyzeBlock_DiscardsStaleResult(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.Result{Title: "Old"}}
	svc, st := newService(t, fa)
	b, err := st.AddBlock("v1", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	fa.onAnalyze = func() {
		_, err := st.UpdateBlock(b.ID, store.BlockPatch{Content: models.String("v2")})
		require.NoError(t, err)
	}

	var failedErr error
	svc.SetEventCallbacks(nil, nil, func(_ string, err error) { failedErr = err })

	_, err = svc.AnalyzeBlock(context.Background(), b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrAIStale))
	assert.True(t, apperrors.Is(failedErr, apperrors.ErrAIStale))
	assert.Nil(t, st.Snapshot().Blocks[0].Title)
}

func TestAnalyzeBlockAsync_RejectsDuplicates(t *testing.T) {
	fa := &fakeAnalyzer{result: analysis.Result{Title: "Done"}, release: make(chan struct{})}
	svc, st := newService(t, fa)
	b, err := st.AddBlock("content", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	done := make(chan models.Block, 1)
	svc.SetEventCallbacks(nil, func(_ string, blk models.Block) { done <- blk }, nil)

	ticket, err := svc.AnalyzeBlockAsync(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, ticket.BlockID)

	_, err = svc.AnalyzeBlockAsync(b.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrAIInProgress))

	close(fa.release)
	select {
	case blk := <-done:
		assert.Equal(t, "Done", *blk.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("analysis did not complete")
	}
	svc.Wait()
	assert.False(t, st.AnalysisPending(b.ID))
}

func TestAnalyzeBlockAsync_TimeoutReleasesTicket(t *testing.T) {
	fa := &fakeAnalyzer{release: make(chan struct{})}
	svc, st := newService(t, fa)
	svc.config.Timeout = 20 * time.Millisecond
	b, err := st.AddBlock("content", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeBlockAsync(b.ID)
	require.NoError(t, err)
	svc.Wait()

	assert.False(t, st.AnalysisPending(b.ID))
	assert.Nil(t, st.Snapshot().Blocks[0].Title)
}

// =====================================================
// FindConnections
// =====================================================

func TestFindConnections(t *testing.T) {
	fa := &fakeAnalyzer{insight: "All about type."}
	svc, st := newService(t, fa)

	_, err := st.AddBlock("only one", models.BlockTypeText, nil, nil)
	require.NoError(t, err)
	_, err = svc.FindConnections(context.Background(), "", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = st.AddBlock("second", models.BlockTypeText, nil, nil)
	require.NoError(t, err)

	out, err := svc.FindConnections(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "All about type.", out)
	assert.Equal(t, DefaultConnectionQuestion, fa.question)
	require.Len(t, fa.excerpts, 2)
	assert.Contains(t, fa.excerpts[0], "[text] Untitled: ")

	_, err = svc.FindConnections(context.Background(), "q", "second")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
