package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-forum/internal/database"
	"github.com/npezzotti/go-forum/internal/testutil"
	"github.com/npezzotti/go-forum/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// seedHistory stores n messages with non-decreasing timestamps, some of them
// sharing a timestamp, and returns them in ascending order.
func seedHistory(t *testing.T, repo *testutil.FakeRepository, n int) []database.ChatMessage {
	t.Helper()
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, database.CreateUserParams{
		Username:    "Doc",
		DisplayName: "Doc Holliday",
		Email:       "doc@tombstone.com",
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1881))
	at := time.Date(1881, time.October, 26, 15, 0, 0, 0, time.UTC)
	all := make([]database.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		if rng.Intn(3) > 0 {
			at = at.Add(time.Duration(1+rng.Intn(1000)) * time.Millisecond)
		}
		msg, err := repo.CreateChatMessage(ctx, u.Id, fmt.Sprintf("message %d", i), at)
		require.NoError(t, err)
		all = append(all, msg)
	}

	return all
}

func ids(messages []types.ChatMessage) []int64 {
	out := make([]int64, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Id)
	}
	return out
}

func rowIds(rows []database.ChatMessage) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Id)
	}
	return out
}

func TestHistoryLatestPage(t *testing.T) {
	repo := testutil.NewFakeRepository()
	all := seedHistory(t, repo, 120)
	svc := NewService(repo, Options{})

	for _, limit := range []int{1, 7, 50, 120} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			got, err := svc.History(context.Background(), limit, nil)
			require.NoError(t, err)
			require.Len(t, got, limit)
			assert.Equal(t, rowIds(all[len(all)-limit:]), ids(got))
		})
	}

	t.Run("limit larger than history returns everything", func(t *testing.T) {
		got, err := svc.History(context.Background(), 200, nil)
		require.NoError(t, err)
		assert.Equal(t, rowIds(all), ids(got))
	})
}

func TestHistoryBeforeCursor(t *testing.T) {
	repo := testutil.NewFakeRepository()
	all := seedHistory(t, repo, 80)
	svc := NewService(repo, Options{})

	for _, idx := range []int{0, 1, 13, 40, 79} {
		m := all[idx]
		t.Run(fmt.Sprintf("before message %d", idx), func(t *testing.T) {
			before := m.CreatedAt
			got, err := svc.History(context.Background(), 25, &before)
			require.NoError(t, err)

			for i, g := range got {
				assert.NotEqual(t, m.Id, g.Id, "expected cursor message to be excluded")
				assert.True(t, g.CreatedAt.Before(before), "expected %s to be before %s", g.CreatedAt, before)
				if i > 0 {
					prev := got[i-1]
					ordered := prev.CreatedAt.Before(g.CreatedAt) ||
						(prev.CreatedAt.Equal(g.CreatedAt) && prev.Id < g.Id)
					assert.True(t, ordered, "expected ascending order at %d", i)
				}
			}

			var expected []int64
			for _, a := range all {
				if a.CreatedAt.Before(before) {
					expected = append(expected, a.Id)
				}
			}
			if len(expected) > 25 {
				expected = expected[len(expected)-25:]
			}
			if expected == nil {
				expected = []int64{}
			}
			assert.Equal(t, expected, ids(got))
		})
	}
}

func TestHistoryEmpty(t *testing.T) {
	svc := NewService(testutil.NewFakeRepository(), Options{})

	got, err := svc.History(context.Background(), 10, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPostThenHistory(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewFakeRepository()
	all := seedHistory(t, repo, 10)
	svc := NewService(repo, Options{})

	posted, err := svc.Post(ctx, all[0].UserId, "  Howdy  ", all[len(all)-1].CreatedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Howdy", posted.Message)
	assert.Equal(t, "Doc", posted.Username)

	got, err := svc.History(ctx, 5, nil)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, posted.Id, got[len(got)-1].Id)

	recent, err := svc.Recent(ctx)
	require.NoError(t, err)
	assert.Equal(t, posted.Id, recent[len(recent)-1].Id)
}

// stallingRepository holds the first ListChatMessages call until release
// is closed.
type stallingRepository struct {
	*testutil.FakeRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *stallingRepository) ListChatMessages(ctx context.Context, before *time.Time, limit int) ([]database.ChatMessage, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.FakeRepository.ListChatMessages(ctx, before, limit)
}

func TestHistorySeesPostDuringSlowRead(t *testing.T) {
	ctx := context.Background()
	fake := testutil.NewFakeRepository()
	all := seedHistory(t, fake, 3)
	repo := &stallingRepository{
		FakeRepository: fake,
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewService(repo, Options{})

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		svc.History(ctx, 50, nil)
	}()
	<-repo.entered
	defer func() {
		close(repo.release)
		<-slowDone
	}()

	posted, err := svc.Post(ctx, all[0].UserId, "Howdy", all[len(all)-1].CreatedAt.Add(time.Second))
	require.NoError(t, err)

	type result struct {
		messages []types.ChatMessage
		err      error
	}
	done := make(chan result, 1)
	go func() {
		messages, err := svc.History(ctx, 50, nil)
		done <- result{messages, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Len(t, res.messages, 4)
		assert.Equal(t, posted.Id, res.messages[len(res.messages)-1].Id)
	case <-time.After(2 * time.Second):
		t.Fatal("history waited on a read that started before the post")
	}
}

func TestPostValidation(t *testing.T) {
	repo := &database.MockForumRepository{}
	defer repo.AssertExpectations(t)
	svc := NewService(repo, Options{})

	tcases := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \n"},
		{name: "too long", text: strings.Repeat("a", maxMessageLength+1)},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Post(context.Background(), 1, tc.text, time.Now())
			var valErr *types.ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

func TestHistoryLimitClamp(t *testing.T) {
	repo := &database.MockForumRepository{}
	defer repo.AssertExpectations(t)
	svc := NewService(repo, Options{DefaultLimit: 50, MaxLimit: 200})

	tcases := []struct {
		name     string
		limit    int
		expected int
	}{
		{name: "zero uses default", limit: 0, expected: 50},
		{name: "negative uses default", limit: -4, expected: 50},
		{name: "within range", limit: 20, expected: 20},
		{name: "capped at max", limit: 5000, expected: 200},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo.On("ListChatMessages", (*time.Time)(nil), tc.expected).Return([]database.ChatMessage{}, nil).Once()
			_, err := svc.History(context.Background(), tc.limit, nil)
			assert.NoError(t, err)
		})
	}
}

func TestHistoryStoreError(t *testing.T) {
	repo := &database.MockForumRepository{}
	defer repo.AssertExpectations(t)
	svc := NewService(repo, Options{})

	repo.On("ListChatMessages", mock.Anything, 50).Return(nil, errors.New("db down")).Once()

	_, err := svc.History(context.Background(), 0, nil)
	var storeErr *types.StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewFakeRepository()
	svc := NewService(repo, Options{})

	doc, err := repo.CreateUser(ctx, database.CreateUserParams{Username: "Doc", DisplayName: "Doc Holliday", Email: "doc@x.com"})
	require.NoError(t, err)
	wyatt, err := repo.CreateUser(ctx, database.CreateUserParams{Username: "Wyatt", DisplayName: "Wyatt Earp", Email: "wyatt@x.com"})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := svc.PostComment(ctx, doc.Id, fmt.Sprintf("doc %d", i))
		require.NoError(t, err)
	}
	last, err := svc.PostComment(ctx, wyatt.Id, "I'm your huckleberry")
	require.NoError(t, err)
	assert.Equal(t, "Wyatt", last.Author)

	_, err = svc.PostComment(ctx, doc.Id, " ")
	var valErr *types.ValidationError
	assert.ErrorAs(t, err, &valErr)

	all, err := svc.Comments(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 13)
	assert.Equal(t, last.Id, all[0].Id, "expected newest comment first")

	mine, err := svc.RecentByUser(ctx, doc.Id)
	require.NoError(t, err)
	assert.Len(t, mine, RecentCommentsLimit)
	for _, c := range mine {
		assert.Equal(t, doc.Id, c.UserId)
	}
}

func TestParseLimit(t *testing.T) {
	tcases := []struct {
		raw      string
		expected int
	}{
		{raw: "", expected: 50},
		{raw: "abc", expected: 50},
		{raw: "0", expected: 50},
		{raw: "-3", expected: 50},
		{raw: "10", expected: 10},
		{raw: " 10 ", expected: 10},
		{raw: "9999", expected: 200},
	}

	for _, tc := range tcases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLimit(tc.raw, 50, 200))
		})
	}
}

func TestParseBefore(t *testing.T) {
	got, err := ParseBefore("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseBefore("2025-01-02T03:04:05.123Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 123000000, time.UTC), *got)

	got, err = ParseBefore("2025-01-02T05:04:05+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), *got)

	_, err = ParseBefore("yesterday")
	var valErr *types.ValidationError
	assert.ErrorAs(t, err, &valErr)
}
