package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/auth"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/geocoder"
	"github.com/anonto42/nano-social/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Earth radius in miles, used to turn a distance into radians.
const earthRadiusMiles = 3963

const (
	PhotoAvatar = "avatar"
	PhotoCover  = "cover"
)

// PhotoUpload is a photo received from a client.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UserService handles accounts, profiles and the follow graph.
type UserService struct {
	logger   *zap.Logger
	users    repositories.UserRepository
	tx       repositories.Transactor
	tokens   *auth.TokenManager
	geocoder geocoder.Geocoder
	photos   *storage.PhotoStore
	notifier Notifier
	firebase IDTokenVerifier
}

// NewUserService creates a new UserService
func NewUserService(
	logger *zap.Logger,
	users repositories.UserRepository,
	tx repositories.Transactor,
	tokens *auth.TokenManager,
	geo geocoder.Geocoder,
	photos *storage.PhotoStore,
	notifier Notifier,
) *UserService {
	return &UserService{
		logger:   logger,
		users:    users,
		tx:       tx,
		tokens:   tokens,
		geocoder: geo,
		photos:   photos,
		notifier: notifier,
	}
}

// WithFirebase enables sign-in with Firebase ID tokens.
func (s *UserService) WithFirebase(v IDTokenVerifier) *UserService {
	s.firebase = v
	return s
}

// FirebaseEnabled reports whether Firebase sign-in is available.
func (s *UserService) FirebaseEnabled() bool {
	return s.firebase != nil
}

// Register creates an account and returns a token for it.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", models.NewValidationError("User already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		return "", storeFailure("find user by email", err, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	location, err := s.locate(ctx, req.Address)
	if err != nil {
		return "", err
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
		Gender:   req.Gender,
		Birthday: req.Birthday,
		JobTitle: req.JobTitle,
		Address:  req.Address,
		Location: location,
		Website:  req.Website,
		Avatar:   models.DefaultAvatar,
		Cover:    models.DefaultCover,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return "", models.NewValidationError("User already exists")
		}
		return "", storeFailure("create user", err, "")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return s.issueToken(user.ID)
}

// Login checks credentials and returns a token.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.NewUnauthorizedError("Wrong email or password")
		}
		return "", storeFailure("find user by email", err, "")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", models.NewUnauthorizedError("Wrong email or password")
	}
	return s.issueToken(user.ID)
}

// FirebaseLogin signs in the account registered with the token's email.
func (s *UserService) FirebaseLogin(ctx context.Context, idToken string) (string, error) {
	if s.firebase == nil {
		return "", models.NewUnauthorizedError("Firebase sign-in is not enabled")
	}

	token, err := s.firebase.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Sugar().Infof("firebase token rejected: %s", err.Error())
		return "", models.NewUnauthorizedError("Invalid Firebase ID token")
	}
	email, _ := token.Claims["email"].(string)
	if email == "" {
		return "", models.NewUnauthorizedError("Firebase account has no email")
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.NewUnauthorizedError("No account registered with this email")
		}
		return "", storeFailure("find user by email", err, "")
	}
	return s.issueToken(user.ID)
}

// GetUser returns one user by hex id.
func (s *UserService) GetUser(ctx context.Context, hexID string) (*models.User, error) {
	notFound := fmt.Sprintf("User not found with id of %s", hexID)
	id, err := parseID(hexID, notFound)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeFailure("find user", err, notFound)
	}
	return user, nil
}

// UpdateUser applies the non-nil fields of req to the caller's profile.
func (s *UserService) UpdateUser(ctx context.Context, callerID primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	fields := bson.M{}
	var unset []string
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		fields["email"] = normalizeEmail(*req.Email)
	}
	if req.Gender != nil {
		fields["gender"] = *req.Gender
	}
	if req.Birthday != nil {
		fields["birthday"] = *req.Birthday
	}
	if req.JobTitle != nil {
		fields["jobTitle"] = *req.JobTitle
	}
	if req.Website != nil {
		fields["website"] = *req.Website
	}
	if req.Address != nil {
		if strings.TrimSpace(*req.Address) == "" {
			return nil, models.NewValidationError("Please add an address")
		}
		location, err := s.locate(ctx, *req.Address)
		if err != nil {
			return nil, err
		}
		fields["address"] = *req.Address
		if location != nil {
			fields["location"] = location
		} else {
			unset = append(unset, "location")
		}
	}

	notFound := fmt.Sprintf("User not found with id of %s", callerID.Hex())
	if len(fields) == 0 {
		user, err := s.users.GetUserByID(ctx, callerID)
		if err != nil {
			return nil, storeFailure("find user", err, notFound)
		}
		return user, nil
	}

	// A location that no longer matches the address must not linger.
	user, err := s.users.UpdateUser(ctx, callerID, fields, unset...)
	if err != nil {
		return nil, storeFailure("update user", err, notFound)
	}
	return user, nil
}

// SearchUsers finds users by name, excluding the caller.
func (s *UserService) SearchUsers(ctx context.Context, callerID primitive.ObjectID, term string) ([]models.User, error) {
	users, err := s.users.SearchUsers(ctx, term, callerID)
	if err != nil {
		return nil, storeFailure("search users", err, "")
	}
	return users, nil
}

// GetConnections lists the followers or the followings of a user.
func (s *UserService) GetConnections(ctx context.Context, hexID, field string) ([]models.User, error) {
	user, err := s.GetUser(ctx, hexID)
	if err != nil {
		return nil, err
	}

	ids := user.Following
	if field == models.FieldFollowers {
		ids = user.Followers
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storeFailure("find "+field, err, "")
	}
	return users, nil
}

// GetNearbyUsers lists users within distance miles of city, excluding the caller.
func (s *UserService) GetNearbyUsers(ctx context.Context, callerID primitive.ObjectID, city, distance string) ([]models.User, error) {
	miles, err := strconv.ParseFloat(distance, 64)
	if err != nil || miles < 0 || math.IsNaN(miles) || math.IsInf(miles, 0) {
		return nil, models.NewValidationError("Please provide a valid distance")
	}

	loc, err := s.geocoder.Geocode(ctx, city)
	if err != nil {
		if errors.Is(err, geocoder.ErrNoResult) {
			return nil, models.NewNotFoundError(fmt.Sprintf("Could not find location %s", city))
		}
		return nil, models.NewInternalError(fmt.Errorf("geocode %q: %w", city, err))
	}

	users, err := s.users.GetUsersWithinRadius(ctx, loc.Lng, loc.Lat, miles/earthRadiusMiles, callerID)
	if err != nil {
		return nil, storeFailure("find users within radius", err, "")
	}
	return users, nil
}

// ToggleFollow makes the caller follow the target, or unfollow it when
// already following, and returns the caller's updated profile.
//
// Both sides of the relation are written; if the second write fails the
// first is reverted so the two arrays never disagree.
func (s *UserService) ToggleFollow(ctx context.Context, callerID primitive.ObjectID, targetHex string) (*models.User, error) {
	target, err := s.GetUser(ctx, targetHex)
	if err != nil {
		return nil, err
	}
	if target.ID == callerID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	follow := !target.IsFollowedBy(callerID)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.UpdateRelation(ctx, target.ID, models.FieldFollowers, callerID, follow); err != nil {
			return err
		}
		if err := s.users.UpdateRelation(ctx, callerID, models.FieldFollowing, target.ID, follow); err != nil {
			if rbErr := s.users.UpdateRelation(ctx, target.ID, models.FieldFollowers, callerID, !follow); rbErr != nil {
				s.logger.Error("failed to revert followers update",
					zap.String("target", target.ID.Hex()),
					zap.String("caller", callerID.Hex()),
					zap.Error(rbErr))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeFailure("toggle follow", err, fmt.Sprintf("User not found with id of %s", callerID.Hex()))
	}

	if follow {
		s.notifier.Notify(ctx, &models.Notification{
			Type:        models.NotificationFollow,
			ActorID:     callerID.Hex(),
			RecipientID: target.ID.Hex(),
			TargetID:    callerID.Hex(),
			Message:     "started following you",
		})
	}

	caller, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, storeFailure("find user", err, fmt.Sprintf("User not found with id of %s", callerID.Hex()))
	}
	return caller, nil
}

// UploadPhoto stores an avatar or cover image and points the caller's
// profile at it.
func (s *UserService) UploadPhoto(ctx context.Context, callerID primitive.ObjectID, kind string, upload *PhotoUpload) (*models.User, error) {
	var dir string
	switch kind {
	case PhotoAvatar:
		dir = "avatars"
	case PhotoCover:
		dir = "images"
	default:
		return nil, models.NewValidationError("Photo type must be avatar or cover")
	}
	if upload == nil || upload.Content == nil {
		return nil, models.NewValidationError("Please upload a photo")
	}

	tooLarge := models.NewPayloadTooLargeError(fmt.Sprintf("Please upload an image less than %d", s.photos.MaxBytes()))
	if upload.Size > s.photos.MaxBytes() {
		return nil, tooLarge
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, models.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]
	if !strings.HasPrefix(upload.ContentType, "image") || !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return nil, models.NewUnsupportedMediaError("Please upload an image file")
	}

	name, err := s.photos.Save(dir, upload.Filename, io.MultiReader(bytes.NewReader(head), upload.Content))
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, tooLarge
		}
		return nil, models.NewInternalError(fmt.Errorf("save photo: %w", err))
	}

	user, err := s.users.UpdateUser(ctx, callerID, bson.M{kind: name})
	if err != nil {
		return nil, storeFailure("update "+kind, err, fmt.Sprintf("User not found with id of %s", callerID.Hex()))
	}
	return user, nil
}

// locate geocodes an address. Unknown addresses are rejected; a provider
// outage only costs the user their location.
func (s *UserService) locate(ctx context.Context, address string) (*models.Location, error) {
	res, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		if errors.Is(err, geocoder.ErrNoResult) {
			return nil, models.NewValidationError("Please add a valid address")
		}
		s.logger.Warn("geocoding failed, storing user without location", zap.Error(err))
		return nil, nil
	}

	loc := models.NewPoint(res.Lng, res.Lat)
	loc.FormattedAddress = res.FormattedAddress
	loc.Street = res.Street
	loc.City = res.City
	loc.State = res.State
	loc.Zipcode = res.Zipcode
	loc.Country = res.Country
	return loc, nil
}

func (s *UserService) issueToken(id primitive.ObjectID) (string, error) {
	token, err := s.tokens.Generate(id)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
