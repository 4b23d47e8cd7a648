// Package seed fills the stores with fake users, posts, comments, follows
// and likes for local development.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Password is shared by every seeded account.
const Password = "123456"

// Options sizes a seeding run.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	FollowsPerUser  int
	LikesPerPost    int
	// Seed makes runs reproducible; 0 picks a random one.
	Seed int64
}

// Summary reports what a run created.
type Summary struct {
	Users    []primitive.ObjectID
	Posts    []primitive.ObjectID
	Comments int
	Follows  int
	Likes    int
}

// Seeder writes fake data through the repositories.
type Seeder struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	comments repositories.CommentRepository
}

// NewSeeder creates a new Seeder
func NewSeeder(users repositories.UserRepository, posts repositories.PostRepository, comments repositories.CommentRepository) *Seeder {
	return &Seeder{users: users, posts: posts, comments: comments}
}

// Run creates the users first, then their posts, then the social graph on top.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	faker := gofakeit.New(opts.Seed)
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	sum := &Summary{}
	for i := 0; i < opts.Users; i++ {
		user := fakeUser(faker, i, string(hash))
		if err := s.users.CreateUser(ctx, user); err != nil {
			return sum, fmt.Errorf("create user %s: %w", user.Email, err)
		}
		sum.Users = append(sum.Users, user.ID)
	}

	for _, author := range sum.Users {
		for i := 0; i < opts.PostsPerUser; i++ {
			post := &models.Post{User: author, Description: faker.Paragraph(1, 3, 12, " ")}
			if err := s.posts.CreatePost(ctx, post); err != nil {
				return sum, fmt.Errorf("create post: %w", err)
			}
			sum.Posts = append(sum.Posts, post.ID)
		}
	}

	for _, post := range sum.Posts {
		for i := 0; i < opts.CommentsPerPost; i++ {
			comment := &models.Comment{User: pick(faker, sum.Users), Post: post, Text: faker.Sentence(8)}
			if err := s.comments.CreateComment(ctx, comment); err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
		for _, liker := range sample(faker, sum.Users, opts.LikesPerPost, primitive.NilObjectID) {
			if err := s.posts.UpdateLike(ctx, post, liker, true); err != nil {
				return sum, fmt.Errorf("like post: %w", err)
			}
			sum.Likes++
		}
	}

	for _, follower := range sum.Users {
		for _, target := range sample(faker, sum.Users, opts.FollowsPerUser, follower) {
			if err := s.users.UpdateRelation(ctx, target, models.FieldFollowers, follower, true); err != nil {
				return sum, fmt.Errorf("follow: %w", err)
			}
			if err := s.users.UpdateRelation(ctx, follower, models.FieldFollowing, target, true); err != nil {
				return sum, fmt.Errorf("follow: %w", err)
			}
			sum.Follows++
		}
	}
	return sum, nil
}

func fakeUser(faker *gofakeit.Faker, i int, hash string) *models.User {
	addr := faker.Address()
	loc := models.NewPoint(addr.Longitude, addr.Latitude)
	loc.FormattedAddress = addr.Address
	loc.Street = addr.Street
	loc.City = addr.City
	loc.State = addr.State
	loc.Zipcode = addr.Zip
	loc.Country = addr.Country

	now := time.Now()
	birthday := faker.DateRange(now.AddDate(-60, 0, 0), now.AddDate(-18, 0, 0)).UTC()

	return &models.User{
		// The index keeps emails unique across the run.
		Email:    fmt.Sprintf("%d.%s", i, strings.ToLower(faker.Email())),
		Password: hash,
		Name:     faker.Name(),
		Gender:   faker.RandomString([]string{"male", "female"}),
		Birthday: &birthday,
		JobTitle: faker.JobTitle(),
		Address:  addr.Address,
		Location: loc,
		Website:  faker.URL(),
		Avatar:   models.DefaultAvatar,
		Cover:    models.DefaultCover,
	}
}

func pick(faker *gofakeit.Faker, ids []primitive.ObjectID) primitive.ObjectID {
	return ids[faker.Number(0, len(ids)-1)]
}

// sample returns up to n distinct ids other than skip.
func sample(faker *gofakeit.Faker, ids []primitive.ObjectID, n int, skip primitive.ObjectID) []primitive.ObjectID {
	pool := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			pool = append(pool, id)
		}
	}
	faker.ShuffleAnySlice(pool)
	if n > len(pool) {
		n = len(pool)
	}
	if n < 0 {
		n = 0
	}
	return pool[:n]
}
