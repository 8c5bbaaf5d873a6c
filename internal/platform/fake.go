package platform

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"time"
)

var _ Client = (*Fake)(nil)

// Fake is an in-memory Client for tests and dry runs. Created tweets get
// sequential IDs starting at NextID.
type Fake struct {
	mu sync.Mutex

	Self     Identity
	NextID   int
	Tweets   map[string]*Tweet
	Mentions []Tweet
	Replies  map[string][]Tweet
	ByUser   map[string][]Tweet

	Posts    []PostRequest
	Retweets []string
	Uploads  []MediaCategory

	// MediaStates is consumed in order by MediaStatus; the last state repeats.
	MediaStates []MediaHandle

	PostErr    error
	RetweetErr error
	FetchErr   error
	UploadErr  error
	MeErr      error
	// PostErrs is consumed one per Post call before PostErr applies.
	PostErrs []error

	fetchCalls int
}

// NewFake returns a Fake authenticated as @cryptopilot.
func NewFake() *Fake {
	return &Fake{
		Self:    Identity{ID: "1", Username: "cryptopilot"},
		NextID:  1000,
		Tweets:  make(map[string]*Tweet),
		Replies: make(map[string][]Tweet),
		ByUser:  make(map[string][]Tweet),
	}
}

// AddTweet registers t so GetTweet and FetchThreadRoot can find it.
func (f *Fake) AddTweet(t Tweet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tweets[t.ID] = &t
}

func (f *Fake) newID() string {
	id := strconv.Itoa(f.NextID)
	f.NextID++
	return id
}

func (f *Fake) Post(_ context.Context, req PostRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.PostErrs) > 0 {
		err := f.PostErrs[0]
		f.PostErrs = f.PostErrs[1:]
		if err != nil {
			return "", err
		}
	} else if f.PostErr != nil {
		return "", f.PostErr
	}
	f.Posts = append(f.Posts, req)
	id := f.newID()
	conversation := id
	if req.InReplyTo != "" {
		if parent, ok := f.Tweets[req.InReplyTo]; ok && parent.ConversationID != "" {
			conversation = parent.ConversationID
		} else {
			conversation = req.InReplyTo
		}
	}
	f.Tweets[id] = &Tweet{
		ID:             id,
		Text:           req.Text,
		AuthorID:       f.Self.ID,
		AuthorUsername: f.Self.Username,
		ConversationID: conversation,
		InReplyToID:    req.InReplyTo,
		CreatedAt:      time.Now().UTC(),
	}
	return id, nil
}

func (f *Fake) Retweet(_ context.Context, tweetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RetweetErr != nil {
		return f.RetweetErr
	}
	f.Retweets = append(f.Retweets, tweetID)
	return nil
}

func (f *Fake) GetTweet(_ context.Context, tweetID string) (*Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	t, ok := f.Tweets[tweetID]
	if !ok {
		return nil, fmt.Errorf("tweet %s: %w", tweetID, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *Fake) FetchMentions(_ context.Context, since time.Time) ([]Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	var out []Tweet
	for _, m := range f.Mentions {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *Fake) FetchThreadRoot(ctx context.Context, conversationID string) (*Tweet, error) {
	return f.GetTweet(ctx, conversationID)
}

func (f *Fake) FetchUserTweets(_ context.Context, username string, since time.Time, limit int) ([]Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	var out []Tweet
	for _, t := range f.ByUser[username] {
		if !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) FetchReplies(_ context.Context, conversationID string, limit int) ([]Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	out := slices.Clone(f.Replies[conversationID])
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) Me(context.Context) (*Identity, error) {
	if f.MeErr != nil {
		return nil, f.MeErr
	}
	self := f.Self
	return &self, nil
}

func (f *Fake) UploadMedia(_ context.Context, r io.Reader, _ string, category MediaCategory) (*MediaHandle, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.Uploads = append(f.Uploads, category)
	h := &MediaHandle{ID: "media-" + f.newID()}
	if category == CategoryVideo {
		h.State = MediaPending
	}
	return h, nil
}

func (f *Fake) MediaStatus(_ context.Context, mediaID string) (*MediaHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.MediaStates) == 0 {
		return &MediaHandle{ID: mediaID, State: MediaSucceeded}, nil
	}
	h := f.MediaStates[0]
	if len(f.MediaStates) > 1 {
		f.MediaStates = f.MediaStates[1:]
	}
	h.ID = mediaID
	return &h, nil
}

// FetchCalls returns how many fetch requests reached the fake.
func (f *Fake) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// PostCount returns the number of successful posts.
func (f *Fake) PostCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Posts)
}

// LastPost returns the most recent successful post request.
func (f *Fake) LastPost() (PostRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Posts) == 0 {
		return PostRequest{}, false
	}
	return f.Posts[len(f.Posts)-1], true
}
