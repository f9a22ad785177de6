package threads

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpost-studio/internal/domain"
)

type stubPosts struct {
	mu      sync.Mutex
	list    []domain.Post
	listErr error
	failOn  map[string]error
	gates   map[string]chan struct{}
	started chan string
	calls   []string
	deleted []string
	waitCtx bool
}

func (s *stubPosts) CreatePost(_ context.Context, p domain.Post) (domain.Post, error) {
	return p, nil
}

func (s *stubPosts) ListByUser(_ context.Context, _ string) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Post, 0, len(s.list))
	for _, p := range s.list {
		if !contains(s.deleted, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPosts) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	s.calls = append(s.calls, id)
	gate := s.gates[id]
	failErr := s.failOn[id]
	waitCtx := s.waitCtx
	s.mu.Unlock()

	if gate != nil {
		if s.started != nil {
			s.started <- id
		}
		<-gate
	}
	if waitCtx {
		<-ctx.Done()
		return domain.Remote("delete document", ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return domain.Remote("delete document", err)
	}
	if failErr != nil {
		return failErr
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, id)
	s.mu.Unlock()
	return nil
}

func (s *stubPosts) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// manualTimer копит отложенные функции до явного fire.
type manualTimer struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualTimer) after(_ time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return func() bool { return true }
}

func (m *manualTimer) fire() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

// fixture: T1 обновлён позже всех, T2 из трёх постов посередине, T3 самый старый.
func fixturePosts() []domain.Post {
	return []domain.Post{
		post("p31", "T3", "2024-01-01T10:00:00Z"),
		post("p21", "T2", "2024-01-02T10:00:00Z"),
		post("p22", "T2", "2024-01-02T10:01:00Z"),
		post("p23", "T2", "2024-01-02T10:02:00Z"),
		post("p11", "T1", "2024-01-03T10:00:00Z"),
	}
}

func newTestService(t *testing.T, posts *stubPosts) (*Service, *manualTimer) {
	t.Helper()
	svc := NewService(posts, zerolog.New(io.Discard), Options{RemoteTimeout: time.Second, ErrorTTL: 3 * time.Second})
	timer := &manualTimer{}
	svc.after = timer.after
	state, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"T1", "T2", "T3"}, threadIDs(state.Threads))
	return svc, timer
}

func pageState(t *testing.T, svc *Service) PageState {
	t.Helper()
	page, ok := svc.Page("u1")
	require.True(t, ok)
	return page.State()
}

func TestDeleteThreadCommits(t *testing.T) {
	posts := &stubPosts{list: fixturePosts()}
	svc, _ := newTestService(t, posts)

	out := svc.DeleteThread(context.Background(), "u1", "T2")

	assert.Equal(t, OutcomeCommitted, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"p21", "p22", "p23"}, out.RemoteDeleted)
	state := pageState(t, svc)
	assert.Equal(t, []string{"T1", "T3"}, threadIDs(state.Threads))
	assert.Empty(t, state.Error)
	assert.Empty(t, state.Deleting)
}

func TestDeleteThreadRollsBackOnPartialFailure(t *testing.T) {
	posts := &stubPosts{
		list:   fixturePosts(),
		failOn: map[string]error{"p22": domain.Remote("delete document", errors.New("503"))},
	}
	svc, timer := newTestService(t, posts)

	out := svc.DeleteThread(context.Background(), "u1", "T2")

	assert.Equal(t, OutcomeRolledBack, out.Status)
	require.Error(t, out.Err)
	assert.True(t, domain.IsRemote(out.Err))

	state := pageState(t, svc)
	assert.Equal(t, []string{"T1", "T2", "T3"}, threadIDs(state.Threads))
	assert.Equal(t, []string{"p21", "p22", "p23"}, postIDs(state.Threads[1].Posts))
	assert.Equal(t, DeleteErrorMessage, state.Error)
	assert.Empty(t, state.Deleting)

	// Откат только локальный: первый пост уже удалён в хранилище, третий не трогали.
	assert.Equal(t, []string{"p21"}, out.RemoteDeleted)
	assert.Equal(t, []string{"p21"}, posts.deleted)
	assert.Equal(t, []string{"p21", "p22"}, posts.calls)

	// Следующая загрузка показывает настоящее состояние хранилища.
	timer.fire()
	assert.Empty(t, pageState(t, svc).Error)
	reloaded, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p22", "p23"}, postIDs(reloaded.Threads[1].Posts))
}

func TestDeleteErrorClearsAfterTTL(t *testing.T) {
	posts := &stubPosts{list: fixturePosts(), failOn: map[string]error{"p31": errors.New("boom")}}
	svc := NewService(posts, zerolog.New(io.Discard), Options{RemoteTimeout: time.Second, ErrorTTL: 20 * time.Millisecond})
	_, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)

	out := svc.DeleteThread(context.Background(), "u1", "T3")
	require.Equal(t, OutcomeRolledBack, out.Status)
	assert.Equal(t, DeleteErrorMessage, pageState(t, svc).Error)
	assert.Eventually(t, func() bool { return pageState(t, svc).Error == "" }, time.Second, 5*time.Millisecond)
}

func TestDeleteErrorTimerRestartsOnSecondFailure(t *testing.T) {
	posts := &stubPosts{list: fixturePosts(), failOn: map[string]error{"p31": errors.New("x"), "p11": errors.New("y")}}
	svc, timer := newTestService(t, posts)

	svc.DeleteThread(context.Background(), "u1", "T3")
	first := timer.fns[0]
	svc.DeleteThread(context.Background(), "u1", "T1")

	first()
	assert.Equal(t, DeleteErrorMessage, pageState(t, svc).Error, "stale timer must not clear a newer error")
	timer.fire()
	assert.Empty(t, pageState(t, svc).Error)
}

func TestDeleteThreadSameThreadTwiceWhilePending(t *testing.T) {
	gate := make(chan struct{})
	posts := &stubPosts{
		list:    fixturePosts(),
		gates:   map[string]chan struct{}{"p21": gate},
		started: make(chan string, 1),
	}
	svc, _ := newTestService(t, posts)

	done := make(chan DeleteOutcome)
	go func() { done <- svc.DeleteThread(context.Background(), "u1", "T2") }()
	<-posts.started

	page, _ := svc.Page("u1")
	assert.True(t, page.IsDeleting("T2"))
	assert.Equal(t, []string{"T2"}, page.State().Deleting)

	second := svc.DeleteThread(context.Background(), "u1", "T2")
	assert.Equal(t, OutcomeIgnored, second.Status)

	close(gate)
	first := <-done
	assert.Equal(t, OutcomeCommitted, first.Status)
	assert.Equal(t, 3, posts.callCount())

	third := svc.DeleteThread(context.Background(), "u1", "T2")
	assert.Equal(t, OutcomeIgnored, third.Status)
	assert.Equal(t, 3, posts.callCount())
}

func TestDeleteThreadUnknownIsNoop(t *testing.T) {
	posts := &stubPosts{list: fixturePosts()}
	svc, _ := newTestService(t, posts)

	out := svc.DeleteThread(context.Background(), "u1", "nope")
	assert.Equal(t, OutcomeIgnored, out.Status)
	assert.NoError(t, out.Err)
	assert.Zero(t, posts.callCount())

	out = svc.DeleteThread(context.Background(), "someone-else", "T1")
	assert.Equal(t, OutcomeIgnored, out.Status)
}

func TestDeleteDifferentThreadsConcurrently(t *testing.T) {
	gate := make(chan struct{})
	posts := &stubPosts{
		list:    fixturePosts(),
		gates:   map[string]chan struct{}{"p11": gate},
		started: make(chan string, 1),
		failOn:  map[string]error{"p31": errors.New("boom")},
	}
	svc, _ := newTestService(t, posts)

	done := make(chan DeleteOutcome)
	go func() { done <- svc.DeleteThread(context.Background(), "u1", "T1") }()
	<-posts.started

	out := svc.DeleteThread(context.Background(), "u1", "T3")
	assert.Equal(t, OutcomeRolledBack, out.Status)
	state := pageState(t, svc)
	assert.Equal(t, []string{"T2", "T3"}, threadIDs(state.Threads))
	assert.Equal(t, []string{"T1"}, state.Deleting)

	close(gate)
	assert.Equal(t, OutcomeCommitted, (<-done).Status)
	state = pageState(t, svc)
	assert.Equal(t, []string{"T2", "T3"}, threadIDs(state.Threads))
	assert.Empty(t, state.Deleting)
}

func TestDeleteCompletionOnClosedPageIsIgnored(t *testing.T) {
	gate := make(chan struct{})
	posts := &stubPosts{
		list:    fixturePosts(),
		gates:   map[string]chan struct{}{"p31": gate},
		started: make(chan string, 1),
		failOn:  map[string]error{"p31": errors.New("boom")},
	}
	svc, _ := newTestService(t, posts)
	oldPage, _ := svc.Page("u1")

	done := make(chan DeleteOutcome)
	go func() { done <- svc.DeleteThread(context.Background(), "u1", "T3") }()
	<-posts.started

	svc.Drop("u1")
	close(gate)
	out := <-done

	assert.Equal(t, OutcomeRolledBack, out.Status)
	assert.True(t, oldPage.Closed())
	state := oldPage.State()
	assert.Equal(t, []string{"T1", "T2"}, threadIDs(state.Threads))
	assert.Empty(t, state.Error)
	_, ok := svc.Page("u1")
	assert.False(t, ok)

	_, ok = oldPage.Begin("T1")
	assert.False(t, ok)
}

func TestDeleteTimeoutIsRemoteError(t *testing.T) {
	posts := &stubPosts{list: fixturePosts(), waitCtx: true}
	svc := NewService(posts, zerolog.New(io.Discard), Options{RemoteTimeout: 10 * time.Millisecond, ErrorTTL: time.Second})
	_, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)

	out := svc.DeleteThread(context.Background(), "u1", "T3")
	assert.Equal(t, OutcomeRolledBack, out.Status)
	assert.True(t, domain.IsRemote(out.Err))
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestDeleteSurvivesCanceledRequest(t *testing.T) {
	posts := &stubPosts{list: fixturePosts()}
	svc, _ := newTestService(t, posts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := svc.DeleteThread(ctx, "u1", "T2")
	assert.Equal(t, OutcomeCommitted, out.Status)
}

func TestLoadFailureIsRemote(t *testing.T) {
	posts := &stubPosts{listErr: errors.New("offline")}
	svc := NewService(posts, zerolog.New(io.Discard), Options{})
	_, err := svc.Load(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, domain.IsRemote(err))
	_, ok := svc.Page("u1")
	assert.False(t, ok)
}

func TestLoadReplacesAndClosesPage(t *testing.T) {
	posts := &stubPosts{list: fixturePosts()}
	svc, _ := newTestService(t, posts)
	first, _ := svc.Page("u1")

	_, err := svc.Load(context.Background(), "u1")
	require.NoError(t, err)
	second, _ := svc.Page("u1")

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
}

func TestDeletionIsSingleShot(t *testing.T) {
	page := NewPage(Aggregate(fixturePosts()), time.Second)
	timer := &manualTimer{}
	page.after = timer.after

	d, ok := page.Begin("T2")
	require.True(t, ok)
	assert.Equal(t, "T2", d.Thread().ThreadID)
	d.Commit()
	d.Rollback()

	state := page.State()
	assert.Equal(t, []string{"T1", "T3"}, threadIDs(state.Threads))
	assert.Empty(t, state.Error)
}
