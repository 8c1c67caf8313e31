package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient:   &http.Client{Transport: &http.Transport{}},
	})
	return &Client{s3: client, region: "eu-central-1"}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(context.Background(), Config{
		Endpoint:  "https://minio.example.test",
		AccessKey: "ak",
		SecretKey: "sk",
		PathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", c.region)
}

func TestReportKey(t *testing.T) {
	ts := time.Date(2026, 3, 9, 14, 5, 7, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "reports/2026/03/09/hvroll-20260309T130507Z.json", ReportKey("/reports/", ts))
	assert.Equal(t, "2026/03/09/hvroll-20260309T130507Z.json", ReportKey("", ts))
}

func TestArchiveReport(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     string
		contentType string
	)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			gotPath, gotBody, contentType = r.URL.Path, string(body), r.Header.Get("Content-Type")
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	key, err := client.ArchiveReport(context.Background(), "rollouts", "prod", ts, []byte(`{"failures":0}`))
	require.NoError(t, err)

	assert.Equal(t, "prod/2026/01/02/hvroll-20260102T030405Z.json", key)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/rollouts/"+key, gotPath)
	assert.Equal(t, `{"failures":0}`, gotBody)
	assert.Equal(t, "application/json", contentType)
}

func TestArchiveReport_MissingBucket(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.ArchiveReport(context.Background(), "missing", "", time.Now(), []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing does not exist")
}

func TestBucketExists_AccessDenied(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	exists, err := client.BucketExists(context.Background(), "locked")
	require.Error(t, err)
	assert.False(t, exists)
	assert.Contains(t, err.Error(), "failed to check bucket locked")
}

func TestPutObject_Error(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))

	err := client.PutObject(context.Background(), "rollouts", "k.json", "", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put object k.json in bucket rollouts")
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"generic api error", &smithy.GenericAPIError{Code: "NoSuchBucket"}, true},
		{"other code", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
