package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type ProfileUpdate struct {
	Bio      string
	Website  string
	Location string
	Company  string
	JobTitle string
}

type UserService interface {
	Get(ctx context.Context, id string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.Profile, error)
	// AvatarUploadURL returns a presigned PUT URL for the user's next avatar
	// and stores the object key on the account.
	AvatarUploadURL(ctx context.Context, userID string) (url string, key string, err error)
}

type userService struct {
	userRepo      repository.UserRepository
	presignClient *s3.PresignClient
	bucket        string
}

func NewUserService(userRepo repository.UserRepository, s3Client *s3.Client, bucket string) UserService {
	return &userService{
		userRepo:      userRepo,
		presignClient: s3.NewPresignClient(s3Client),
		bucket:        bucket,
	}
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	u.Password = ""
	return u, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.userRepo.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Bio = update.Bio
	p.Website = update.Website
	p.Location = update.Location
	p.Company = update.Company
	p.JobTitle = update.JobTitle
	if err := s.userRepo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *userService) AvatarUploadURL(ctx context.Context, userID string) (string, string, error) {
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if u == nil {
		return "", "", ErrUserNotFound
	}

	key := fmt.Sprintf("avatars/%s/%s", userID, uuid.NewString())
	request, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", fmt.Errorf("presign avatar upload for user %s: %w", userID, err)
	}
	if err := s.userRepo.UpdateAvatarURL(ctx, userID, key); err != nil {
		return "", "", err
	}
	return request.URL, key, nil
}
