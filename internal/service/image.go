package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/config"
)

const maxImageBytes = 5 << 20

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Image is a decoded recipe image ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	name        string
}

// Key is the storage key of the image.
func (i *Image) Key() string {
	return "recipes/images/" + i.name
}

// DecodeImage parses a base64 data URI such as "data:image/png;base64,...".
func DecodeImage(dataURI string) (*Image, error) {
	header, payload, ok := strings.Cut(dataURI, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, Validation("image", "Image must be a base64 data URI.")
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, Validation("image", "Unsupported image type.")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, Validation("image", "Image is not valid base64.")
	}
	if len(data) == 0 {
		return nil, Validation("image", "Image is empty.")
	}
	if len(data) > maxImageBytes {
		return nil, Validation("image", "Image is too large.")
	}
	if sniffed := http.DetectContentType(data); sniffed != contentType && sniffed != "application/octet-stream" {
		return nil, Validation("image", "Image content does not match its type.")
	}

	return &Image{
		Data:        data,
		ContentType: contentType,
		name:        uuid.NewString() + "." + ext,
	}, nil
}

func decodeOptionalImage(dataURI *string) (*Image, error) {
	if dataURI == nil || *dataURI == "" {
		return nil, nil
	}
	return DecodeImage(*dataURI)
}

// S3ImageStore uploads images to the configured bucket.
type S3ImageStore struct {
	s3 *config.S3Config
}

func NewS3ImageStore(s3Config *config.S3Config) *S3ImageStore {
	return &S3ImageStore{s3: s3Config}
}

// Save uploads image data to S3 and returns the public URL
func (s *S3ImageStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.s3.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return s.s3.PublicURL(key), nil
}

// Delete removes an object from the bucket.
func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.s3.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.s3.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// DiskImageStore writes images under a local media root, for development
// without an object store.
type DiskImageStore struct {
	root    string
	baseURL string
}

func NewDiskImageStore(root, baseURL string) *DiskImageStore {
	return &DiskImageStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *DiskImageStore) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *DiskImageStore) Delete(_ context.Context, key string) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
