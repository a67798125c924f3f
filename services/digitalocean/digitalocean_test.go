package digitalocean

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleCompletion(t *testing.T) {
	var got InferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(InferenceResponse{
			Choices: []InferenceChoice{{Message: InferenceMessage{Role: "assistant", Content: "hello"}}},
		})
	}))
	defer srv.Close()

	client := NewInferenceClient(InferenceConfig{APIKey: "secret", BaseURL: srv.URL, Model: "m1"})
	out, err := client.SimpleCompletion(context.Background(), "sys", "hi",
		WithInferenceMaxTokens(100), WithInferenceTemperature(0.7), WithResponseFormatJSON())
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestSimpleCompletion_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	client := NewInferenceClient(InferenceConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := client.SimpleCompletion(context.Background(), "", "hi")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "slow down")
}

func TestSimpleCompletion_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewInferenceClient(InferenceConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := client.SimpleCompletion(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestMinIntervalLimiter_SpacesCalls(t *testing.T) {
	limiter := NewMinIntervalLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestMinIntervalLimiter_FirstCallDoesNotWait(t *testing.T) {
	limiter := NewMinIntervalLimiter(time.Hour)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, limiter.LastCall().IsZero())
}

func TestMinIntervalLimiter_ContextCancelled(t *testing.T) {
	limiter := NewMinIntervalLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
}

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = in
	return &s3.PutObjectOutput{}, nil
}

func TestSpacesClient_UploadBytes(t *testing.T) {
	api := &fakeS3{}
	client := newSpacesClientWithAPI(api, SpacesConfig{
		Bucket:   "media",
		Endpoint: "https://nyc3.digitaloceanspaces.com",
	})

	url, err := client.UploadBytes(context.Background(), "narration/1.mp3", []byte("abc"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://media.nyc3.digitaloceanspaces.com/narration/1.mp3", url)
	require.NotNil(t, api.input)
	assert.Equal(t, "public-read", aws.StringValue(api.input.ACL))
	assert.Equal(t, "audio/mpeg", aws.StringValue(api.input.ContentType))

	cdn := newSpacesClientWithAPI(api, SpacesConfig{Bucket: "media", CDNURL: "https://cdn.example.com/"})
	url, err = cdn.UploadBytes(context.Background(), "a.mp3", []byte("abc"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp3", url)
}

func TestNewSpacesClient_RequiresCredentials(t *testing.T) {
	partial := SpacesConfig{Bucket: "b"}
	assert.False(t, partial.IsConfigured())
	_, err := NewSpacesClient(partial)
	assert.Error(t, err)

	full := SpacesConfig{AccessKey: "k", SecretKey: "s", Bucket: "b", Region: "nyc3"}
	assert.True(t, full.IsConfigured())
}
