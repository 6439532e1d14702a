// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/auth/authtest"
	authpg "github.com/quillblog/quill/internal/auth/postgres"
	"github.com/quillblog/quill/internal/blog"
	blogpg "github.com/quillblog/quill/internal/blog/postgres"
	"github.com/quillblog/quill/internal/observability"
	"github.com/quillblog/quill/internal/store/storetest"
	"github.com/quillblog/quill/internal/web"
)

const password = "pw123"

// client is a browser-like API client with its own cookie jar.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{
		base: base,
		http: &http.Client{Jar: jar, Transport: &http.Transport{DisableKeepAlives: true}},
	}
}

// call sends body as JSON and decodes the response into out when non-nil.
func (c *client) call(method, path string, body, out any) int {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if out != nil && len(data) > 0 {
		Expect(json.Unmarshal(data, out)).To(Succeed(), string(data))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

type postBody struct {
	Post struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		OwnerID string `json:"owner_id"`
	} `json:"post"`
}

type listBody struct {
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
	Posts []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"posts"`
}

var _ = Describe("Blog over HTTP", Ordered, func() {
	var (
		ctx      context.Context
		db       *storetest.Database
		server   *web.Server
		notifier *authtest.Notifier
		metrics  *observability.Metrics
		base     string
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		db, err = storetest.Start(ctx)
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		notifier = &authtest.Notifier{}

		hasher, err := auth.NewArgon2idHasherWithParams(auth.HasherParams{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32})
		Expect(err).NotTo(HaveOccurred())
		sessions, err := auth.NewSessionManager(authtest.Secret(), auth.SessionConfig{}, nil)
		Expect(err).NotTo(HaveOccurred())
		resetTokens, err := auth.NewResetTokenService(authtest.Secret(), 30*time.Minute, nil)
		Expect(err).NotTo(HaveOccurred())

		users := authpg.NewUserRepository(db.Pool)
		authSvc, err := auth.NewAuthService(users, hasher, sessions, auth.WithLogger(logger), auth.WithMetrics(metrics))
		Expect(err).NotTo(HaveOccurred())
		resets, err := auth.NewPasswordResetService(users, hasher, resetTokens, notifier, "https://blog.example.com",
			auth.WithLogger(logger), auth.WithMetrics(metrics))
		Expect(err).NotTo(HaveOccurred())
		blogSvc, err := blog.NewService(blogpg.NewPostRepository(db.Pool), users, blog.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		api, err := web.New(web.Config{
			Auth:    authSvc,
			Resets:  resets,
			Blog:    blogSvc,
			Metrics: metrics,
			Logger:  logger,
		})
		Expect(err).NotTo(HaveOccurred())

		server = web.NewServer("127.0.0.1:0", api.Handler())
		_, err = server.Start()
		Expect(err).NotTo(HaveOccurred())
		base = "http://" + server.Addr()
	})

	AfterAll(func() {
		if server != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}
		if db != nil {
			db.Close(ctx)
		}
	})

	register := func(c *client, username string) {
		status := c.call(http.MethodPost, "/api/register", map[string]string{
			"username": username, "email": username + "@x.com", "password": password,
		}, nil)
		Expect(status).To(Equal(http.StatusCreated))
	}
	login := func(c *client, email, pw string) int {
		return c.call(http.MethodPost, "/api/login", map[string]any{"email": email, "password": pw}, nil)
	}

	var alice, bob *client
	var postID string

	It("registers and logs in with a session cookie", func() {
		alice, bob = newClient(base), newClient(base)
		register(alice, "alice")
		register(bob, "bob")

		var dup errorBody
		Expect(newClient(base).call(http.MethodPost, "/api/register", map[string]string{
			"username": "ALICE", "email": "other@x.com", "password": password,
		}, &dup)).To(Equal(http.StatusConflict))
		Expect(dup.Error.Field).To(Equal("username"))

		Expect(login(alice, "alice@x.com", password)).To(Equal(http.StatusOK))
		Expect(login(bob, "BOB@x.com", password)).To(Equal(http.StatusOK))
		Expect(alice.call(http.MethodGet, "/api/account", nil, nil)).To(Equal(http.StatusOK))
		Expect(testutil.ToFloat64(metrics.LoginsTotal.WithLabelValues("success"))).To(Equal(2.0))
	})

	It("lets only the owner change a post", func() {
		var created postBody
		Expect(alice.call(http.MethodPost, "/api/posts", map[string]string{
			"title": "Hello", "content": "First post",
		}, &created)).To(Equal(http.StatusCreated))
		postID = created.Post.ID

		var denied errorBody
		Expect(bob.call(http.MethodPatch, "/api/posts/"+postID, map[string]string{
			"title": "Hijacked", "content": "x",
		}, &denied)).To(Equal(http.StatusForbidden))
		Expect(denied.Error.Code).To(Equal("FORBIDDEN"))
		Expect(bob.call(http.MethodDelete, "/api/posts/"+postID, nil, nil)).To(Equal(http.StatusForbidden))

		var got postBody
		Expect(newClient(base).call(http.MethodGet, "/api/posts/"+postID, nil, &got)).To(Equal(http.StatusOK))
		Expect(got.Post.Title).To(Equal("Hello"))

		Expect(alice.call(http.MethodPatch, "/api/posts/"+postID, map[string]string{
			"title": "Hello again", "content": "Edited",
		}, &got)).To(Equal(http.StatusOK))
		Expect(got.Post.Title).To(Equal("Hello again"))
	})

	It("lists posts newest first and by author", func() {
		Expect(alice.call(http.MethodPost, "/api/posts", map[string]string{
			"title": "Second", "content": "More",
		}, nil)).To(Equal(http.StatusCreated))

		var recent listBody
		Expect(newClient(base).call(http.MethodGet, "/api/posts?limit=10", nil, &recent)).To(Equal(http.StatusOK))
		Expect(recent.Posts).To(HaveLen(2))
		Expect(recent.Posts[0].Title).To(Equal("Second"))

		var byAuthor listBody
		Expect(newClient(base).call(http.MethodGet, "/api/users/Alice/posts", nil, &byAuthor)).To(Equal(http.StatusOK))
		Expect(byAuthor.Author.Username).To(Equal("alice"))
		Expect(byAuthor.Posts).To(HaveLen(2))

		byAuthor = listBody{}
		Expect(newClient(base).call(http.MethodGet, "/api/users/bob/posts", nil, &byAuthor)).To(Equal(http.StatusOK))
		Expect(byAuthor.Posts).To(BeEmpty())
	})

	It("resets a forgotten password through the mailed link", func() {
		anon := newClient(base)
		Expect(anon.call(http.MethodPost, "/api/reset_password", map[string]string{"email": "alice@x.com"}, nil)).
			To(Equal(http.StatusAccepted))
		Expect(anon.call(http.MethodPost, "/api/reset_password", map[string]string{"email": "ghost@x.com"}, nil)).
			To(Equal(http.StatusAccepted))

		Eventually(notifier.Sent).WithTimeout(5 * time.Second).Should(HaveLen(1))
		sent := notifier.Sent()
		Expect(sent[0].Email).To(Equal("alice@x.com"))
		token := strings.TrimPrefix(sent[0].Link, "https://blog.example.com/reset_password/")
		Expect(token).NotTo(Equal(sent[0].Link))

		Expect(anon.call(http.MethodPost, "/api/reset_password/"+token, map[string]string{"password": "n3wn3wn3w"}, nil)).
			To(Equal(http.StatusOK))
		Expect(login(anon, "alice@x.com", password)).To(Equal(http.StatusUnauthorized))
		Expect(login(anon, "alice@x.com", "n3wn3wn3w")).To(Equal(http.StatusOK))
	})

	It("deletes a post for its owner and forgets the session on logout", func() {
		Expect(alice.call(http.MethodDelete, "/api/posts/"+postID, nil, nil)).To(Equal(http.StatusNoContent))
		Expect(alice.call(http.MethodGet, "/api/posts/"+postID, nil, nil)).To(Equal(http.StatusNotFound))

		Expect(alice.call(http.MethodPost, "/api/logout", nil, nil)).To(Equal(http.StatusNoContent))
		Expect(alice.call(http.MethodGet, "/api/account", nil, nil)).To(Equal(http.StatusUnauthorized))
	})
})
