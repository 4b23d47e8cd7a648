// Package testutil provides in-memory stand-ins for the stores and external
// services, for use in tests.
package testutil

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.UserRepository    = (*Store)(nil)
	_ repositories.PostRepository    = (*Store)(nil)
	_ repositories.CommentRepository = (*Store)(nil)
)

// Store keeps users, posts and comments in memory and implements the user,
// post and comment repositories.
type Store struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	comments map[primitive.ObjectID]*models.Comment
	clock    time.Time

	// RelationErr, when set, runs before every UpdateRelation and aborts it
	// with the returned error.
	RelationErr func(id primitive.ObjectID, field string) error
	// CommentsDeleteErr, when set, fails DeleteCommentsByPost.
	CommentsDeleteErr error
	// AfterCommentCreate and BeforePostDelete, when set, run outside the lock
	// to interleave writes the way concurrent requests would.
	AfterCommentCreate func(c models.Comment)
	BeforePostDelete   func(id primitive.ObjectID)
}

func NewStore() *Store {
	return &Store{
		users:    map[primitive.ObjectID]*models.User{},
		posts:    map[primitive.ObjectID]*models.Post{},
		comments: map[primitive.ObjectID]*models.Comment{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing creation times.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// AddUser stores a user with sensible defaults and returns a copy.
func (s *Store) AddUser(name, email string) *models.User {
	u := &models.User{Name: name, Email: email, Gender: "female", Avatar: models.DefaultAvatar, Cover: models.DefaultCover}
	if err := s.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// AddPost stores a post by user and returns a copy.
func (s *Store) AddPost(user primitive.ObjectID, description string) *models.Post {
	p := &models.Post{User: user, Description: description}
	if err := s.CreatePost(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// AddComment stores a comment and returns a copy.
func (s *Store) AddComment(user, post primitive.ObjectID, text string) *models.Comment {
	c := &models.Comment{User: user, Post: post, Text: text}
	if err := s.CreateComment(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

// CommentCount reports how many comments are stored.
func (s *Store) CommentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

// Users

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return models.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = s.tick()
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectUsers(func(u *models.User) bool { return containsID(ids, u.ID) }), nil
}

func (s *Store) SearchUsers(_ context.Context, term string, exclude primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	term = strings.ToLower(term)
	return s.selectUsers(func(u *models.User) bool {
		return u.ID != exclude && strings.Contains(strings.ToLower(u.Name), term)
	}), nil
}

func (s *Store) GetUsersWithinRadius(_ context.Context, lng, lat, radius float64, exclude primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectUsers(func(u *models.User) bool {
		if u.ID == exclude || u.Location == nil || len(u.Location.Coordinates) != 2 {
			return false
		}
		return angle(lng, lat, u.Location.Coordinates[0], u.Location.Coordinates[1]) <= radius
	}), nil
}

func (s *Store) UpdateUser(_ context.Context, id primitive.ObjectID, fields bson.M, unset ...string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if email, ok := fields["email"].(string); ok {
		for _, other := range s.users {
			if other.ID != id && other.Email == email {
				return nil, models.ErrDuplicate
			}
		}
	}

	for k, v := range fields {
		switch k {
		case "name":
			u.Name = v.(string)
		case "email":
			u.Email = v.(string)
		case "gender":
			u.Gender = v.(string)
		case "birthday":
			t := v.(time.Time)
			u.Birthday = &t
		case "jobTitle":
			u.JobTitle = v.(string)
		case "address":
			u.Address = v.(string)
		case "website":
			u.Website = v.(string)
		case "avatar":
			u.Avatar = v.(string)
		case "cover":
			u.Cover = v.(string)
		case "location":
			u.Location = v.(*models.Location)
		}
	}
	for _, k := range unset {
		if k == "location" {
			u.Location = nil
		}
	}
	return cloneUser(u), nil
}

func (s *Store) UpdateRelation(_ context.Context, id primitive.ObjectID, field string, other primitive.ObjectID, add bool) error {
	if s.RelationErr != nil {
		if err := s.RelationErr(id, field); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	list := &u.Following
	if field == models.FieldFollowers {
		list = &u.Followers
	}
	*list = toggleID(*list, other, add)
	return nil
}

// Posts

func (s *Store) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = s.tick()
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *Store) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clonePost(p), nil
}

func (s *Store) GetExpandedPost(_ context.Context, id primitive.ObjectID) (*models.PostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	v := s.postView(p)
	return &v, nil
}

func (s *Store) GetExpandedPostsByUsers(_ context.Context, users []primitive.ObjectID) ([]models.PostView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var posts []*models.Post
	for _, p := range s.posts {
		if containsID(users, p.User) {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })

	out := []models.PostView{}
	for _, p := range posts {
		out = append(out, s.postView(p))
	}
	return out, nil
}

func (s *Store) UpdateDescription(_ context.Context, id primitive.ObjectID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Description = description
	return nil
}

func (s *Store) DeletePost(_ context.Context, id primitive.ObjectID) error {
	if s.BeforePostDelete != nil {
		s.BeforePostDelete(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) UpdateLike(_ context.Context, id, user primitive.ObjectID, add bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Likes = toggleID(p.Likes, user, add)
	return nil
}

// Comments

func (s *Store) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = s.tick()
	c := *comment
	s.comments[c.ID] = &c
	s.mu.Unlock()

	if s.AfterCommentCreate != nil {
		s.AfterCommentCreate(c)
	}
	return nil
}

func (s *Store) GetCommentByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) GetExpandedComment(_ context.Context, id primitive.ObjectID) (*models.CommentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	v := s.commentView(c)
	return &v, nil
}

func (s *Store) GetExpandedCommentsByPost(_ context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postComments(postID), nil
}

func (s *Store) UpdateText(_ context.Context, id primitive.ObjectID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.ErrNotFound
	}
	c.Text = text
	return nil
}

func (s *Store) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) DeleteCommentsByPost(_ context.Context, postID primitive.ObjectID) (int64, error) {
	if s.CommentsDeleteErr != nil {
		return 0, s.CommentsDeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, c := range s.comments {
		if c.Post == postID {
			delete(s.comments, id)
			n++
		}
	}
	return n, nil
}

// helpers; callers hold s.mu

func (s *Store) selectUsers(keep func(u *models.User) bool) []models.User {
	out := []models.User{}
	for _, u := range s.users {
		if keep(u) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) summary(id primitive.ObjectID) *models.UserSummary {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return &models.UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

func (s *Store) commentView(c *models.Comment) models.CommentView {
	return models.CommentView{ID: c.ID, User: s.summary(c.User), Post: c.Post, Text: c.Text, CreatedAt: c.CreatedAt}
}

func (s *Store) postComments(postID primitive.ObjectID) []models.CommentView {
	out := []models.CommentView{}
	for _, c := range s.comments {
		if c.Post == postID {
			out = append(out, s.commentView(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) postView(p *models.Post) models.PostView {
	return models.PostView{
		ID:          p.ID,
		User:        s.summary(p.User),
		Description: p.Description,
		Likes:       append([]primitive.ObjectID{}, p.Likes...),
		Comments:    s.postComments(p.ID),
		CreatedAt:   p.CreatedAt,
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Followers = append([]primitive.ObjectID{}, u.Followers...)
	c.Following = append([]primitive.ObjectID{}, u.Following...)
	if u.Location != nil {
		loc := *u.Location
		loc.Coordinates = append([]float64{}, u.Location.Coordinates...)
		c.Location = &loc
	}
	return &c
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Likes = append([]primitive.ObjectID{}, p.Likes...)
	return &c
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// toggleID adds id once, or removes every copy of it.
func toggleID(ids []primitive.ObjectID, id primitive.ObjectID, add bool) []primitive.ObjectID {
	if add {
		if containsID(ids, id) {
			return ids
		}
		return append(ids, id)
	}
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// angle is the central angle in radians between two lng/lat points.
func angle(lng1, lat1, lng2, lat2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
