package discuit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	calls   atomic.Int32
	logger  *slog.Logger
}

func (s *ClientTestSuite) SetupTest() {
	s.calls.Store(0)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.handler(w, r)
	}))
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) client() *Client {
	return New(Config{
		BaseURL:        s.server.URL + "/api/",
		PageSize:       50,
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, s.logger)
}

func (s *ClientTestSuite) TestListPosts() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.Equal("/api/posts", r.URL.Path)
		s.Equal("all", q.Get("feed"))
		s.Equal("latest", q.Get("sort"))
		s.Equal("20", q.Get("limit"))
		s.Equal("abc", q.Get("next"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"posts": [
				{"id": "p1", "publicId": "x1", "type": "text", "title": "hi", "body": "there",
				 "communityName": "golang", "username": "bob", "upvotes": 3, "hotness": 1.5,
				 "image": null, "createdAt": "2024-05-01T08:00:00Z"},
				{"id": "p2", "publicId": "x2", "type": "link", "title": "a link",
				 "link": {"url": "https://go.dev"}}
			],
			"next": "def"
		}`))
	}

	posts, next, err := s.client().ListPosts(context.Background(), "abc", 20)

	s.Require().NoError(err)
	s.Equal("def", next)
	s.Require().Len(posts, 2)
	s.Equal("x1", posts[0].PublicID)
	s.Equal("there", *posts[0].Body)
	s.Equal(int64(3), posts[0].Upvotes)
	s.Nil(posts[0].Image)
	s.JSONEq(`{"url": "https://go.dev"}`, string(posts[1].Link))
}

func (s *ClientTestSuite) TestListPosts_LastPage() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Empty(r.URL.Query().Get("next"))
		s.Equal("50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"posts": [], "next": null}`))
	}

	posts, next, err := s.client().ListPosts(context.Background(), "", 500)

	s.Require().NoError(err)
	s.Empty(posts)
	s.Empty(next)
}

func (s *ClientTestSuite) TestListPosts_RetriesServerErrors() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if s.calls.Load() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"posts": [{"id": "p1"}], "next": null}`))
	}

	posts, _, err := s.client().ListPosts(context.Background(), "", 10)

	s.Require().NoError(err)
	s.Len(posts, 1)
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientTestSuite) TestListPosts_UnavailableAfterRetries() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_, _, err := s.client().ListPosts(context.Background(), "", 10)

	s.ErrorIs(err, ErrUnavailable)
	s.ErrorContains(err, "503")
	s.Equal(int32(3), s.calls.Load())
}

func (s *ClientTestSuite) TestListPosts_ClientErrorIsNotRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}

	_, _, err := s.client().ListPosts(context.Background(), "", 10)

	s.ErrorIs(err, ErrUnavailable)
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientTestSuite) TestListPosts_BadBody() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}

	_, _, err := s.client().ListPosts(context.Background(), "", 10)

	s.Error(err)
	s.NotErrorIs(err, ErrUnavailable)
	s.Equal(int32(1), s.calls.Load())
}

func (s *ClientTestSuite) TestCalculateBackoff() {
	c := New(Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}, s.logger)

	s.Equal(time.Second, c.calculateBackoff(1))
	s.Equal(2*time.Second, c.calculateBackoff(2))
	s.Equal(4*time.Second, c.calculateBackoff(3))
	s.Equal(5*time.Second, c.calculateBackoff(4))
}
