package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/internal/testutil"
	"github.com/anonto42/nano-social/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubRunner struct {
	values url.Values
	spec   query.Spec
}

func (r *stubRunner) Run(_ context.Context, values url.Values, spec query.Spec) (*query.Results, error) {
	r.values, r.spec = values, spec
	return query.NewResults([]bson.M{{"id": "1"}}, 1, 25, 1), nil
}

type app struct {
	e      *echo.Echo
	store  *testutil.Store
	tokens *auth.TokenManager
	runner *stubRunner
}

type options struct {
	redis     *redis.Client
	rateLimit int
}

func newApp(t *testing.T, opts ...options) *app {
	t.Helper()
	var o options
	if len(opts) > 0 {
		o = opts[0]
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	a := &app{
		e:      echo.New(),
		store:  testutil.NewStore(),
		tokens: auth.NewTokenManager("test-secret", time.Hour),
		runner: &stubRunner{},
	}
	log := zap.NewNop()
	tx := &testutil.Tx{}
	photos := storage.NewPhotoStore(afero.NewMemMapFs(), "/uploads", 1024)
	notifications := services.NewNotificationService(log, repositories.NewPostgresNotificationRepository(db))
	users := services.NewUserService(log, a.store, tx, a.tokens, testutil.NewGeocoder(), photos, notifications)

	SetupMiddleware(a.e, log, []string{"*"}, nil)
	SetupRoutes(a.e, Deps{
		Logger:          log,
		Tokens:          a.tokens,
		Runner:          a.runner,
		Users:           users,
		Posts:           services.NewPostService(log, a.store, a.store, tx, notifications),
		Comments:        services.NewCommentService(log, a.store, a.store, notifications),
		Notifications:   notifications,
		Redis:           o.redis,
		RateLimit:       o.rateLimit,
		RateLimitWindow: time.Minute,
		TokenTTL:        time.Hour,
	})
	return a
}

// user stores an account and returns it with a token for it.
func (a *app) user(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	u := a.store.AddUser(name, strings.ToLower(name)+"@example.com")
	token, err := a.tokens.Generate(u.ID)
	require.NoError(t, err)
	return u, token
}

func (a *app) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return a.serve(t, req, token)
}

func (a *app) serve(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "data is not an object: %v", body["data"])
	return d
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec, body := a.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	a := newApp(t)
	reg := `{"email":"a@x.com","password":"secret1","name":"A","gender":"male","address":"Boston"}`

	rec, body := a.do(t, http.MethodPost, "/api/users/register", reg, "")
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, true, body["success"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec, body = a.do(t, http.MethodPost, "/api/users/register", reg, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", body["error"])
	assert.Equal(t, false, body["success"])

	rec, body = a.do(t, http.MethodPost, "/api/users/login", `{"email":"a@x.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["token"])

	rec, body = a.do(t, http.MethodPost, "/api/users/login", `{"email":"a@x.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Wrong email or password", body["error"])

	rec, body = a.do(t, http.MethodGet, "/api/users/me", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	me := data(t, body)
	assert.Equal(t, "a@x.com", me["email"])
	assert.NotContains(t, me, "password")
	assert.Equal(t, "Boston", me["location"].(map[string]interface{})["city"])
}

func TestRegisterValidation(t *testing.T) {
	a := newApp(t)

	rec, body := a.do(t, http.MethodPost, "/api/users/register",
		`{"email":"a@x.com","password":"secret1","gender":"male","address":"Boston"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please add a name", body["error"])

	rec, body = a.do(t, http.MethodPost, "/api/users/register", `{"email":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request payload", body["error"])

	rec, body = a.do(t, http.MethodPost, "/api/users/register",
		`{"email":"a@x.com","password":"secret1","name":"A","gender":"male","address":"Atlantis"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please add a valid address", body["error"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/api/users/me", "/api/posts", "/api/comments", "/api/notifications"} {
		rec, body := a.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "Not authorized to access this route", body["error"], path)
	}

	rec, _ := a.do(t, http.MethodGet, "/api/users/me", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	a := newApp(t, options{redis: rdb, rateLimit: 2})

	login := `{"email":"a@x.com","password":"secret1"}`
	for i := 0; i < 2; i++ {
		rec, _ := a.do(t, http.MethodPost, "/api/users/login", login, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, body := a.do(t, http.MethodPost, "/api/users/login", login, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", body["error"])
}

func TestUsersListing(t *testing.T) {
	a := newApp(t)
	ann, token := a.user(t, "Ann")
	bob, _ := a.user(t, "Bob")
	a.user(t, "Bobby")

	rec, body := a.do(t, http.MethodGet, "/api/users?query=bob", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["count"])
	assert.Nil(t, a.runner.values, "search bypasses advanced results")

	rec, body = a.do(t, http.MethodPut, "/api/users/"+bob.ID.Hex()+"/follow", "", token)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, []interface{}{bob.ID.Hex()}, data(t, body)["following"])

	rec, body = a.do(t, http.MethodGet, "/api/users?followers=true&id="+bob.ID.Hex(), "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, ann.ID.Hex(), list[0].(map[string]interface{})["id"])

	rec, body = a.do(t, http.MethodGet, "/api/users?following=true", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"], "defaults to the caller's list")

	rec, body = a.do(t, http.MethodGet, "/api/users?gender=female&page=2", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "users", a.runner.spec.Collection)
	assert.Equal(t, "female", a.runner.values.Get("gender"))
	assert.EqualValues(t, 1, body["count"])

	rec, body = a.do(t, http.MethodGet, "/api/users/"+bob.ID.Hex()+"/profile", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", data(t, body)["name"])

	rec, body = a.do(t, http.MethodGet, "/api/users/nope/profile", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found with id of nope", body["error"])

	rec, body = a.do(t, http.MethodPut, "/api/users/"+ann.ID.Hex()+"/follow", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You cannot follow yourself", body["error"])
}

func TestUpdateProfileAndRadius(t *testing.T) {
	a := newApp(t)
	_, token := a.user(t, "Ann")
	_, bobToken := a.user(t, "Bob")

	rec, body := a.do(t, http.MethodPut, "/api/users", `{"address":"Boston","jobTitle":"Baker"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "Baker", data(t, body)["jobTitle"])

	rec, _ = a.do(t, http.MethodPut, "/api/users", `{"address":"Cambridge"}`, bobToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = a.do(t, http.MethodGet, "/api/users/radius/Boston/10", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = a.do(t, http.MethodGet, "/api/users/radius/Boston/far", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide a valid distance", body["error"])

	rec, body = a.do(t, http.MethodPut, "/api/users", `{"website":"ftp://x"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please use a valid URL with HTTP or HTTPS", body["error"])
}

func photoRequest(t *testing.T, kind, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/users/photo/"+kind, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadPhoto(t *testing.T) {
	a := newApp(t)
	_, token := a.user(t, "Ann")
	png := append(append([]byte{}, pngHeader...), make([]byte, 100)...)

	rec, body := a.serve(t, photoRequest(t, "avatar", "image/png", png), token)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Regexp(t, `^photo_\d+\.png$`, data(t, body)["avatar"])

	rec, body = a.serve(t, photoRequest(t, "cover", "text/plain", []byte("hello")), token)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "Please upload an image file", body["error"])

	big := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
	rec, _ = a.serve(t, photoRequest(t, "cover", "image/png", big), token)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec, body = a.serve(t, photoRequest(t, "banner", "image/png", png), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Photo type must be avatar or cover", body["error"])

	rec, body = a.do(t, http.MethodPut, "/api/users/photo/avatar", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please upload a photo", body["error"])
}

func TestPostsLifecycle(t *testing.T) {
	a := newApp(t)
	_, annToken := a.user(t, "Ann")
	_, bobToken := a.user(t, "Bob")

	rec, body := a.do(t, http.MethodPost, "/api/posts", `{"description":"hello"}`, annToken)
	require.Equal(t, http.StatusOK, rec.Code, body)
	post := data(t, body)
	postID := post["id"].(string)
	assert.Equal(t, "Ann", post["user"].(map[string]interface{})["name"])

	rec, body = a.do(t, http.MethodPost, "/api/posts", `{}`, annToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please add a description", body["error"])

	rec, body = a.do(t, http.MethodPost, "/api/comments/"+postID, `{"text":"nice"}`, bobToken)
	require.Equal(t, http.StatusOK, rec.Code, body)
	commentID := data(t, body)["id"].(string)

	rec, body = a.do(t, http.MethodGet, "/api/comments/"+postID, "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = a.do(t, http.MethodPut, "/api/comments/"+commentID, `{"text":"mine now"}`, annToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized to update this comment", body["error"])

	rec, body = a.do(t, http.MethodPut, "/api/posts/"+postID+"/like", "", bobToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, data(t, body)["likes"], 1)
	assert.Len(t, data(t, body)["comments"], 1)

	rec, body = a.do(t, http.MethodPut, "/api/posts/"+postID+"/like", "", bobToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, data(t, body)["likes"])

	rec, body = a.do(t, http.MethodPut, "/api/posts/"+postID, `{"description":"hacked"}`, bobToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized to update this post", body["error"])

	rec, body = a.do(t, http.MethodPut, "/api/posts/"+postID, `{"description":"edited"}`, annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", data(t, body)["description"])

	rec, body = a.do(t, http.MethodGet, "/api/posts?following=true", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	assert.Nil(t, a.runner.values)

	rec, _ = a.do(t, http.MethodDelete, "/api/posts/"+postID, "", bobToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = a.do(t, http.MethodDelete, "/api/posts/"+postID, "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, data(t, body))
	assert.Zero(t, a.store.CommentCount())

	rec, body = a.do(t, http.MethodGet, "/api/posts/"+postID, "", annToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No post with id of "+postID, body["error"])

	rec, _ = a.do(t, http.MethodGet, "/api/posts?select=description&limit=2", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "posts", a.runner.spec.Collection)
	assert.Equal(t, "2", a.runner.values.Get("limit"))
}

func TestCommentsAdvancedResults(t *testing.T) {
	a := newApp(t)
	_, token := a.user(t, "Ann")

	rec, body := a.do(t, http.MethodGet, "/api/comments?sort=-createdAt", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "comments", a.runner.spec.Collection)
	assert.Contains(t, body, "pagination")
}

func TestNotifications(t *testing.T) {
	a := newApp(t)
	ann, annToken := a.user(t, "Ann")
	_, bobToken := a.user(t, "Bob")
	post := a.store.AddPost(ann.ID, "hello")

	rec, _ := a.do(t, http.MethodPut, "/api/posts/"+post.ID.Hex()+"/like", "", bobToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := a.do(t, http.MethodGet, "/api/notifications", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
	list := body["data"].([]interface{})
	require.Len(t, list, 1)
	n := list[0].(map[string]interface{})
	assert.Equal(t, models.NotificationLike, n["type"])
	assert.Equal(t, "Bob", n["actor"].(map[string]interface{})["name"])

	rec, body = a.do(t, http.MethodGet, "/api/notifications/unread-count", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, data(t, body)["count"])

	rec, body = a.do(t, http.MethodGet, "/api/notifications/grouped", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, data(t, body)["unreadCount"])

	rec, body = a.do(t, http.MethodPut, "/api/notifications/abc/read", "", annToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No notification with id of abc", body["error"])

	rec, _ = a.do(t, http.MethodPut, "/api/notifications/read-all", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = a.do(t, http.MethodGet, "/api/notifications/unread-count", "", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, data(t, body)["count"])

	rec, body = a.do(t, http.MethodGet, "/api/notifications", "", bobToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["count"])
}
