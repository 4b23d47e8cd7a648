package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/testutil"
	"github.com/anonto42/nano-social/backend/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store    *testutil.Store
	tx       *testutil.Tx
	notifier *testutil.Notifier
	geo      *testutil.Geocoder
	fs       afero.Fs
	tokens   *auth.TokenManager

	users    *UserService
	posts    *PostService
	comments *CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewStore(),
		tx:       &testutil.Tx{},
		notifier: &testutil.Notifier{},
		geo:      testutil.NewGeocoder(),
		fs:       afero.NewMemMapFs(),
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
	}
	logger := zap.NewNop()
	photos := storage.NewPhotoStore(f.fs, "/uploads", 1024)

	f.users = NewUserService(logger, f.store, f.tx, f.tokens, f.geo, photos, f.notifier)
	f.posts = NewPostService(logger, f.store, f.store, f.tx, f.notifier)
	f.comments = NewCommentService(logger, f.store, f.store, f.notifier)
	return f
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}

func assertMessage(t *testing.T, err error, code, message string) {
	t.Helper()
	assertCode(t, err, code)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, message, appErr.Message)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
