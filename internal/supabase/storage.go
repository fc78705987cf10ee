package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// EvidenceStore uploads evidence images to Supabase Storage.
type EvidenceStore struct {
	client *Client
}

func NewEvidenceStore(client *Client) *EvidenceStore {
	return &EvidenceStore{client: client}
}

// Upload stores content under bucket/objectName and returns its public URL.
func (s *EvidenceStore) Upload(ctx context.Context, content []byte, objectName, bucket string) (string, error) {
	if objectName == "" || bucket == "" {
		return "", fmt.Errorf("supabase storage: empty object name or bucket")
	}

	objectPath := url.PathEscape(bucket) + "/" + url.PathEscape(objectName)
	err := s.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/storage/v1/object/" + objectPath,
		body:        content,
		contentType: contentTypeFor(content),
		key:         serviceKey,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("supabase storage upload %s: %w", objectName, err)
	}

	return s.client.baseURL + "/storage/v1/object/public/" + objectPath, nil
}

// contentTypeFor sniffs image bytes; evidence is assumed to be JPEG otherwise.
func contentTypeFor(content []byte) string {
	ct := http.DetectContentType(content)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
