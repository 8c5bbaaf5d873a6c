package xapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/platform"
)

const tweetFields = "created_at,author_id,conversation_id,public_metrics,referenced_tweets"

type apiTweet struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	AuthorID         string    `json:"author_id"`
	ConversationID   string    `json:"conversation_id"`
	CreatedAt        time.Time `json:"created_at"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type includes struct {
	Users []apiUser `json:"users"`
}

type tweetList struct {
	Data     []apiTweet `json:"data"`
	Includes includes   `json:"includes"`
}

type singleTweet struct {
	Data     *apiTweet `json:"data"`
	Includes includes  `json:"includes"`
}

func (t apiTweet) toTweet(users map[string]string) platform.Tweet {
	out := platform.Tweet{
		ID:             t.ID,
		Text:           t.Text,
		AuthorID:       t.AuthorID,
		AuthorUsername: users[t.AuthorID],
		ConversationID: t.ConversationID,
		CreatedAt:      t.CreatedAt.UTC(),
		LikeCount:      t.PublicMetrics.LikeCount,
		RetweetCount:   t.PublicMetrics.RetweetCount,
		ReplyCount:     t.PublicMetrics.ReplyCount,
	}
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "replied_to" {
			out.InReplyToID = ref.ID
		}
	}
	return out
}

func usernames(inc includes) map[string]string {
	m := make(map[string]string, len(inc.Users))
	for _, u := range inc.Users {
		m[u.ID] = u.Username
	}
	return m
}

func (l tweetList) tweets() []platform.Tweet {
	users := usernames(l.Includes)
	out := make([]platform.Tweet, 0, len(l.Data))
	for _, t := range l.Data {
		out = append(out, t.toTweet(users))
	}
	return out
}

func tweetQuery() url.Values {
	q := url.Values{}
	q.Set("tweet.fields", tweetFields)
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	return q
}

type createTweet struct {
	Text  string `json:"text"`
	Reply *struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply,omitempty"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
	Poll *struct {
		Options         []string `json:"options"`
		DurationMinutes int      `json:"duration_minutes"`
	} `json:"poll,omitempty"`
}

// Post creates a tweet, reply or poll and returns the new ID.
func (c *Client) Post(ctx context.Context, req platform.PostRequest) (string, error) {
	body := createTweet{Text: req.Text}
	if req.InReplyTo != "" {
		body.Reply = &struct {
			InReplyToTweetID string `json:"in_reply_to_tweet_id"`
		}{req.InReplyTo}
	}
	if len(req.MediaIDs) > 0 {
		body.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{req.MediaIDs}
	}
	if req.Poll != nil {
		body.Poll = &struct {
			Options         []string `json:"options"`
			DurationMinutes int      `json:"duration_minutes"`
		}{req.Poll.Options, req.Poll.DurationMinutes}
	}

	resp, err := c.create(ctx, "/2/tweets", body)
	if err != nil {
		return "", err
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := decode(resp, &created); err != nil {
		return "", err
	}
	if created.Data.ID == "" {
		return "", fmt.Errorf("platform returned no tweet id")
	}
	return created.Data.ID, nil
}

// Retweet reposts tweetID from the authenticated account.
func (c *Client) Retweet(ctx context.Context, tweetID string) error {
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/2/users/"+me.ID+"/retweets", nil, map[string]string{"tweet_id": tweetID})
	if err != nil {
		return err
	}
	var result struct {
		Data struct {
			Retweeted bool `json:"retweeted"`
		} `json:"data"`
	}
	if err := decode(resp, &result); err != nil {
		return err
	}
	if !result.Data.Retweeted {
		return fmt.Errorf("retweet of %s was not applied", tweetID)
	}
	return nil
}

// GetTweet returns platform.ErrNotFound for deleted or unknown tweets.
func (c *Client) GetTweet(ctx context.Context, tweetID string) (*platform.Tweet, error) {
	resp, err := c.do(ctx, http.MethodGet, "/2/tweets/"+url.PathEscape(tweetID), tweetQuery(), nil)
	if err != nil {
		return nil, err
	}
	var single singleTweet
	if err := decode(resp, &single); err != nil {
		return nil, err
	}
	// Deleted tweets come back as 200 with only an errors array.
	if single.Data == nil {
		return nil, fmt.Errorf("tweet %s: %w", tweetID, platform.ErrNotFound)
	}
	t := single.Data.toTweet(usernames(single.Includes))
	return &t, nil
}

// FetchThreadRoot returns the tweet that started the conversation.
func (c *Client) FetchThreadRoot(ctx context.Context, conversationID string) (*platform.Tweet, error) {
	return c.GetTweet(ctx, conversationID)
}

// FetchMentions returns mentions of the authenticated account since the given time.
func (c *Client) FetchMentions(ctx context.Context, since time.Time) ([]platform.Tweet, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	q := tweetQuery()
	q.Set("start_time", since.UTC().Format(time.RFC3339))
	q.Set("max_results", "100")
	return c.list(ctx, "/2/users/"+me.ID+"/mentions", q)
}

// FetchUserTweets returns recent original tweets of username.
func (c *Client) FetchUserTweets(ctx context.Context, username string, since time.Time, limit int) ([]platform.Tweet, error) {
	resp, err := c.do(ctx, http.MethodGet, "/2/users/by/username/"+url.PathEscape(username), nil, nil)
	if err != nil {
		return nil, err
	}
	var user struct {
		Data *apiUser `json:"data"`
	}
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	if user.Data == nil {
		return nil, fmt.Errorf("user %s: %w", username, platform.ErrNotFound)
	}

	q := tweetQuery()
	q.Set("start_time", since.UTC().Format(time.RFC3339))
	q.Set("exclude", "retweets,replies")
	q.Set("max_results", strconv.Itoa(clampResults(limit)))
	tweets, err := c.list(ctx, "/2/users/"+user.Data.ID+"/tweets", q)
	if err != nil {
		return nil, err
	}
	for i := range tweets {
		if tweets[i].AuthorUsername == "" {
			tweets[i].AuthorUsername = user.Data.Username
		}
	}
	if limit > 0 && len(tweets) > limit {
		tweets = tweets[:limit]
	}
	return tweets, nil
}

// FetchReplies searches recent replies within a conversation.
func (c *Client) FetchReplies(ctx context.Context, conversationID string, limit int) ([]platform.Tweet, error) {
	q := tweetQuery()
	q.Set("query", "conversation_id:"+conversationID+" is:reply")
	q.Set("max_results", strconv.Itoa(clampResults(limit)))
	tweets, err := c.list(ctx, "/2/tweets/search/recent", q)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tweets) > limit {
		tweets = tweets[:limit]
	}
	return tweets, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]platform.Tweet, error) {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	var list tweetList
	if err := decode(resp, &list); err != nil {
		return nil, err
	}
	return list.tweets(), nil
}

// the API accepts 10..100 (5..100 for some endpoints)
func clampResults(n int) int {
	switch {
	case n <= 10:
		return 10
	case n > 100:
		return 100
	}
	return n
}

// Me returns the authenticated account, cached after the first call.
func (c *Client) Me(ctx context.Context) (*platform.Identity, error) {
	c.mu.Lock()
	if c.self != nil {
		self := *c.self
		c.mu.Unlock()
		return &self, nil
	}
	c.mu.Unlock()

	resp, err := c.do(ctx, http.MethodGet, "/2/users/me", nil, nil)
	if err != nil {
		return nil, err
	}
	var me struct {
		Data apiUser `json:"data"`
	}
	if err := decode(resp, &me); err != nil {
		return nil, err
	}
	if me.Data.ID == "" {
		return nil, fmt.Errorf("platform returned no user id")
	}

	c.mu.Lock()
	c.self = &platform.Identity{ID: me.Data.ID, Username: me.Data.Username}
	self := *c.self
	c.mu.Unlock()
	return &self, nil
}
