package s3blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMissingBucket(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	require.ErrorContains(t, err, "bucket name is required")
}

func TestNewRejectsMissingRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Bucket: "ticks"})
	require.ErrorContains(t, err, "region is required")
}

func TestWithScheme(t *testing.T) {
	cases := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"https://store.example.com", false, "https://store.example.com"},
		{"http://localhost:9000", true, "http://localhost:9000"},
		{"store.example.com", true, "https://store.example.com"},
		{"localhost:9000", false, "http://localhost:9000"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, withScheme(tc.endpoint, tc.useSSL), tc.endpoint)
	}
}
