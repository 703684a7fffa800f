package uploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Uploader implements the upload collaborator: it stores an image and
// returns a publicly resolvable URL the Graph API can fetch.
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string // public prefix the bucket is served under
}

func NewS3Uploader(client *s3.Client, bucket, baseURL string) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores body under a fresh key, keeping the original extension so
// the served content type stays guessable.
func (u *S3Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("uploads/%s%s", uuid.NewString(), path.Ext(filename))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return u.baseURL + "/" + key, nil
}
