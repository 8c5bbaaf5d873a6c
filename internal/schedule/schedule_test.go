package schedule

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/logger"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return func() time.Time { return baseTime }
}

func post(at time.Time, topic string) *Schedule {
	return &Schedule{ActionMeta: ActionMeta{ScheduledTime: at}, CurrentEvents: topic}
}

func TestScheduleManager_PendingStaysSorted(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		offset := time.Duration(rng.Intn(10_000)-5_000) * time.Minute
		m.AddSchedule(post(baseTime.Add(offset), "topic"))

		pending := m.Pending()
		assert.True(t, sort.SliceIsSorted(pending, func(a, b int) bool {
			return pending[a].ScheduledTime.Before(pending[b].ScheduledTime)
		}), "pending must stay sorted after insert %d", i)
	}
}

func TestScheduleManager_StableTies(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	first := m.AddSchedule(post(baseTime, "first"))
	second := m.AddSchedule(post(baseTime, "second"))

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Same(t, first, pending[0])
	assert.Same(t, second, pending[1])
}

func TestScheduleManager_NormalizesToUTC(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	loc := time.FixedZone("UTC+3", 3*60*60)

	s := m.AddSchedule(post(time.Date(2025, 3, 1, 15, 0, 0, 0, loc), "eth"))

	assert.Equal(t, time.UTC, s.ScheduledTime.Location())
	assert.True(t, s.ScheduledTime.Equal(baseTime))
	assert.NotEmpty(t, s.ID)
}

func TestScheduleManager_OverdueAndFuture(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	past := m.AddSchedule(post(baseTime.Add(-time.Hour), "past"))
	now := m.AddSchedule(post(baseTime, "now"))
	future := m.AddSchedule(post(baseTime.Add(time.Hour), "future"))

	assert.Equal(t, []*Schedule{past, now}, m.OverdueEvents())
	assert.Equal(t, []*Schedule{future}, m.FutureEvents())
	assert.Same(t, past, m.NextEvent())
}

func TestScheduleManager_PendingCompletedPartition(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	a := m.AddSchedule(post(baseTime.Add(-time.Hour), "a"))
	b := m.AddSchedule(post(baseTime.Add(time.Hour), "b"))

	require.True(t, m.RemoveScheduledPost(a))

	assert.True(t, a.Completed)
	assert.NotContains(t, m.Pending(), a)
	assert.Contains(t, m.Completed(), a)
	assert.Equal(t, []*Schedule{a, b}, m.All())

	t.Run("second removal is a no-op", func(t *testing.T) {
		assert.False(t, m.RemoveScheduledPost(a))
		assert.Len(t, m.Completed(), 1)
	})

	t.Run("unknown and nil items are no-ops", func(t *testing.T) {
		assert.False(t, m.RemoveScheduledPost(post(baseTime, "stranger")))
		assert.False(t, m.RemoveScheduledPost(nil))
		pending, completed := m.Counts()
		assert.Equal(t, 1, pending)
		assert.Equal(t, 1, completed)
	})
}

func TestScheduleManager_OverdueScenario(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	s := m.AddSchedule(post(baseTime.Add(-time.Hour), "ETH rally"))

	assert.Equal(t, []*Schedule{s}, m.OverdueEvents())
}

func TestPollScheduleManager(t *testing.T) {
	m := NewPollScheduleManager(WithClock(fixedClock()))
	later := m.AddPoll(&PollSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime.Add(2 * time.Hour)}, Question: "later"})
	due := m.AddPoll(&PollSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime.Add(-time.Minute)}, Question: "due"})

	assert.Same(t, due, m.NextPoll())
	assert.Equal(t, []*PollSchedule{due}, m.OverduePolls())
	assert.Equal(t, []*PollSchedule{later}, m.FuturePolls())

	assert.True(t, m.MarkPollCompleted(due))
	assert.False(t, m.MarkPollCompleted(due))
	assert.Same(t, later, m.NextPoll())
}

func TestCommentManager_FutureCommentsReturnsDueItems(t *testing.T) {
	m := NewCommentManager(WithClock(fixedClock()))
	due := m.AddComment(&CommentSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime.Add(-time.Minute)}, TweetID: "1"})
	m.AddComment(&CommentSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime.Add(time.Hour)}, TweetID: "2"})

	// Despite the name, FutureComments yields ready-to-post items.
	assert.Equal(t, []*CommentSchedule{due}, m.FutureComments())
	assert.Equal(t, m.OverdueComments(), m.FutureComments())
}

func TestCommentManager_NormalizesTimePosted(t *testing.T) {
	m := NewCommentManager(WithClock(fixedClock()))
	loc := time.FixedZone("PST", -8*60*60)
	c := m.AddComment(&CommentSchedule{
		ActionMeta: ActionMeta{ScheduledTime: baseTime},
		TimePosted: time.Date(2025, 3, 1, 1, 0, 0, 0, loc),
		TweetID:    "1",
	})
	assert.Equal(t, time.UTC, c.TimePosted.Location())
	assert.True(t, m.MarkCommentCompleted(c))
	assert.Nil(t, m.NextComment())
}

func candidate(id string, posted time.Time, retweets, likes int) *RetweetCandidate {
	return &RetweetCandidate{TweetID: id, SourceAcc: "whale", TimePosted: posted, RetweetCount: retweets, LikeCount: likes}
}

func TestRetweetManager_CandidateDedup(t *testing.T) {
	m := NewRetweetManager(WithClock(fixedClock()))

	assert.True(t, m.AddCandidate(candidate("100", baseTime, 1, 1)))
	assert.False(t, m.AddCandidate(candidate("100", baseTime, 5, 5)))
	assert.Len(t, m.AllCandidates(), 1)
}

func TestRetweetManager_CandidateRanking(t *testing.T) {
	m := NewRetweetManager(WithClock(fixedClock()))
	m.AddCandidate(candidate("low", baseTime, 1, 100))
	m.AddCandidate(candidate("top", baseTime, 10, 1))
	m.AddCandidate(candidate("tie-more-likes", baseTime, 5, 50))
	m.AddCandidate(candidate("tie-fewer-likes", baseTime, 5, 10))

	var ids []string
	for _, c := range m.AllCandidates() {
		ids = append(ids, c.TweetID)
	}
	assert.Equal(t, []string{"top", "tie-more-likes", "tie-fewer-likes", "low"}, ids)
}

func TestRetweetManager_CandidateExpiry(t *testing.T) {
	now := baseTime
	m := NewRetweetManager(WithClock(func() time.Time { return now }), WithCandidateMaxAge(24*time.Hour))

	assert.False(t, m.AddCandidate(candidate("old", baseTime.Add(-25*time.Hour), 100, 100)), "expired on arrival")
	assert.True(t, m.AddCandidate(candidate("fresh", baseTime.Add(-time.Hour), 1, 1)))

	require.Len(t, m.AllCandidates(), 1)
	assert.Equal(t, "fresh", m.AllCandidates()[0].TweetID)
	assert.Equal(t, 1, m.CandidateCount(), "expired candidate is pruned on insert")

	now = baseTime.Add(24 * time.Hour)
	assert.Empty(t, m.AllCandidates(), "expired candidates are hidden before the next prune")
}

func TestRetweetManager_ScheduleFromCandidate(t *testing.T) {
	m := NewRetweetManager(WithClock(fixedClock()))
	m.AddCandidate(candidate("200", baseTime.Add(-time.Hour), 3, 7))
	when := baseTime.Add(time.Minute)

	r := m.ScheduleFromCandidate("200", when)

	require.NotNil(t, r)
	assert.Equal(t, "200", r.TweetID)
	assert.Equal(t, 7, r.LikeCount)
	assert.True(t, r.ScheduledTime.Equal(when))
	assert.Empty(t, m.AllCandidates())
	assert.Equal(t, []*RetweetSchedule{r}, m.Pending())

	t.Run("missing candidate", func(t *testing.T) {
		assert.Nil(t, m.ScheduleFromCandidate("200", when))
		assert.Nil(t, m.ScheduleFromCandidate("nope", when))
	})

	t.Run("scheduled tweet cannot re-enter the pool", func(t *testing.T) {
		assert.False(t, m.AddCandidate(candidate("200", baseTime, 1, 1)))
	})
}

func TestRetweetManager_ScheduleFromCandidateAlreadyScheduled(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "schedule.log")
	log, err := logger.New(logger.Config{Level: "warn", Format: "json", Output: logPath})
	require.NoError(t, err)
	m := NewRetweetManager(WithClock(fixedClock()), WithLogger(log))

	require.True(t, m.AddCandidate(candidate("400", baseTime.Add(-time.Hour), 1, 1)))
	// scheduled directly while still in the pool
	require.True(t, m.AddRetweet(&RetweetSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime}, TweetID: "400"}))

	assert.Nil(t, m.ScheduleFromCandidate("400", baseTime))
	assert.Empty(t, m.AllCandidates())
	assert.Len(t, m.Pending(), 1)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "candidate dropped, tweet already scheduled")
	assert.Contains(t, string(data), `"tweet_id":"400"`)
}

func TestRetweetManager_AddRetweetDedup(t *testing.T) {
	m := NewRetweetManager(WithClock(fixedClock()))
	r := &RetweetSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime}, TweetID: "300"}

	assert.True(t, m.AddRetweet(r))
	assert.False(t, m.AddRetweet(&RetweetSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime}, TweetID: "300"}))
	assert.False(t, m.AlreadyRetweeted("300"))

	require.True(t, m.MarkRetweetCompleted(r))
	assert.True(t, m.AlreadyRetweeted("300"))
	assert.False(t, m.AddRetweet(&RetweetSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime}, TweetID: "300"}))
	assert.False(t, m.AddRetweet(&RetweetSchedule{ActionMeta: ActionMeta{ScheduledTime: baseTime}}))
}

func TestCompetitorCommentManager(t *testing.T) {
	m := NewCompetitorCommentManager()
	m.Add(&CompetitorComment{TweetID: "b", TimePosted: baseTime, LikeCount: 1})
	m.Add(&CompetitorComment{TweetID: "a", TimePosted: baseTime.Add(-time.Hour), LikeCount: 10, ReplyCount: 5})
	m.Add(&CompetitorComment{TweetID: "c", TimePosted: baseTime.Add(time.Hour), LikeCount: 3})

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].TweetID)
	assert.Equal(t, "c", all[2].TweetID)

	top := m.Top(2)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].TweetID)
	assert.Equal(t, "c", top[1].TweetID)

	assert.NotNil(t, m.Find("b"))
	assert.True(t, m.Remove("b"))
	assert.False(t, m.Remove("b"))
	assert.Nil(t, m.Find("b"))
	assert.Equal(t, 2, m.Len())
}

func TestValidatePoll(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
		wantErr  bool
	}{
		{"two options", "Bull or bear?", []string{"Bull", "Bear"}, false},
		{"four options", "Best L1?", []string{"ETH", "SOL", "ADA", "AVAX"}, false},
		{"one option", "Only one?", []string{"Yes"}, true},
		{"five options", "Too many?", []string{"a", "b", "c", "d", "e"}, true},
		{"empty question", " ", []string{"a", "b"}, true},
		{"blank option", "Blank?", []string{"a", ""}, true},
		{"option too long", "Long?", []string{"a", "this option is far too long to fit"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePoll(tt.question, tt.options)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRestoreKeepsPartition(t *testing.T) {
	m := NewScheduleManager(WithClock(fixedClock()))
	done := post(baseTime.Add(-2*time.Hour), "done")
	m.Restore([]*Schedule{post(baseTime.Add(time.Hour), "b"), post(baseTime, "a")}, []*Schedule{done})

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].CurrentEvents)
	assert.True(t, done.Completed)
	assert.NotEmpty(t, done.ID)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `posts:
  - scheduled_time: "2025-03-01 14:00"
    current_events: "ETH ETF inflows"
    include_media: true
  - scheduled_time: "2025-03-01T16:00:00+02:00"
    content: "weekly recap"
polls:
  - scheduled_time: "2025-03-02 09:00:00"
    question: "Which L2 wins?"
    options: [Base, Arbitrum, Optimism]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	seed, err := LoadSeed(path)
	require.NoError(t, err)

	posts, polls, err := seed.Records()
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Len(t, polls, 1)

	assert.Equal(t, time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC), posts[0].ScheduledTime)
	assert.Equal(t, MediaImage, posts[0].MediaType)
	assert.Equal(t, time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC), posts[1].ScheduledTime)
	assert.Equal(t, 1440, polls[0].DurationMinutes)

	t.Run("invalid poll rejects seed", func(t *testing.T) {
		bad := &Seed{Polls: []SeedPoll{{ScheduledTime: "2025-03-02 09:00", Question: "q", Options: []string{"only"}}}}
		_, _, err := bad.Records()
		assert.ErrorIs(t, err, ErrPollOptions)
	})
}
