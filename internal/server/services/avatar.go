package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/dbx"
	"github.com/dmitrijs2005/spa-auth/internal/logging"
	sc "github.com/dmitrijs2005/spa-auth/internal/server/config"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	avatarUploadExpiry   = 15 * time.Minute
	avatarDownloadExpiry = 60 * time.Minute
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// AvatarUpload is where the client PUTs the avatar image.
type AvatarUpload struct {
	Key string
	URL string
}

// AvatarService stores user avatars in S3 compatible storage. The server
// never handles image bytes: clients upload through presigned URLs.
type AvatarService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	log         logging.Logger
	now         func() time.Time
}

func NewAvatarService(db dbx.DBTX, m repomanager.RepositoryManager, cfg *sc.Config, log logging.Logger) *AvatarService {
	return &AvatarService{
		db:          db,
		repomanager: m,
		config:      cfg,
		log:         log.With("module", "services.avatar"),
		now:         time.Now,
	}
}

func (s *AvatarService) storageKey(userID string) string {
	d := s.now()
	return fmt.Sprintf("avatars/%s/%d/%02d/%v", userID, d.Year(), d.Month(), uuid.New())
}

func (s *AvatarService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// PresignUpload reserves a new object key for userID's avatar, records it on
// the user and returns the presigned PUT URL.
func (s *AvatarService) PresignUpload(ctx context.Context, userID string) (*AvatarUpload, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, s.internal(ctx, "s3 config", err)
	}

	bucket := s.config.S3Bucket
	key := s.storageKey(userID)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(avatarUploadExpiry))
	if err != nil {
		return nil, s.internal(ctx, "presign put", err)
	}

	if err := s.repomanager.Users(s.db).SetAvatarKey(ctx, userID, key); err != nil {
		return nil, s.internal(ctx, "store avatar key", err)
	}

	return &AvatarUpload{Key: key, URL: req.URL}, nil
}

// AvatarURL returns a presigned GET URL for an uploaded avatar, the provider
// avatar URL otherwise, or "" when the user has neither.
func (s *AvatarService) AvatarURL(ctx context.Context, user *models.User) (string, error) {
	if user.AvatarKey == "" {
		return user.Avatar, nil
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", s.internal(ctx, "s3 config", err)
	}

	bucket := s.config.S3Bucket
	key := user.AvatarKey

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(avatarDownloadExpiry))
	if err != nil {
		return "", s.internal(ctx, "presign get", err)
	}
	return req.URL, nil
}

func (s *AvatarService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
