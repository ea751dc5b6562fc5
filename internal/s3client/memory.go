package s3client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// NewInMemory starts a gofakes3 server with bucketName created and returns
// a Client for it. Used by --no-s3 runs and tests; call stop when done.
func NewInMemory(ctx context.Context, bucketName string) (client *Client, stop func(), err error) {
	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())

	c, err := New(ctx, Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		ts.Close()
		return nil, nil, err
	}

	_, err = c.api.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		ts.Close()
		return nil, nil, fmt.Errorf("create bucket %q: %w", bucketName, err)
	}

	return c, ts.Close, nil
}

// TestClient returns a Client on a fresh in-memory gofakes3 server with
// bucketName already created. The server closes when the test ends.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()

	c, stop, err := NewInMemory(context.Background(), bucketName)
	if err != nil {
		t.Fatalf("start in-memory S3: %v", err)
	}
	t.Cleanup(stop)
	return c
}
