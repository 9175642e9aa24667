package storage

import (
	"fmt"
	"io"
	"time"
)

// HTTPRange describes a byte range of an object. A zero Count means
// everything from Offset to the end.
type HTTPRange struct {
	Offset int64
	Count  int64
}

func (r HTTPRange) format() string {
	if r.Offset == 0 && r.Count == 0 {
		return ""
	}
	if r.Count == 0 {
		return fmt.Sprintf("bytes=%d-", r.Offset)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Offset, r.Offset+r.Count-1)
}

// BucketItem is one entry in a bucket listing.
type BucketItem struct {
	Name      string    `json:"name"`
	CreatedOn time.Time `json:"createdOn"`
}

// ObjectItem is one entry in an object listing.
type ObjectItem struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectProperties are the system properties and user metadata of an
// object, as reported by a HEAD request.
type ObjectProperties struct {
	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
	Metadata      map[string]string
}

type CreateBucketOptions struct{}

type CreateBucketResponse struct {
	RequestID string
}

type DeleteBucketOptions struct{}

type DeleteBucketResponse struct {
	RequestID string
}

type ListBucketsOptions struct {
	// MaxResults caps the page size. Zero lets the service choose.
	MaxResults int32
}

type ListBucketsResponse struct {
	Buckets []BucketItem `json:"buckets"`

	// NextMarker resumes the listing; empty on the last page.
	NextMarker string `json:"-"`
}

type UploadObjectOptions struct {
	ContentType string
	Metadata    map[string]string

	// ComputeMD5 and ComputeCRC64 attach transactional checksums of
	// the body for the service to verify.
	ComputeMD5   bool
	ComputeCRC64 bool
}

type UploadObjectResponse struct {
	ETag      string
	RequestID string
}

type DownloadObjectOptions struct {
	Range HTTPRange

	// ValidateChecksum verifies the whole-body CRC64 the service
	// returns. Only applies to full downloads.
	ValidateChecksum bool

	// MaxRetryRequests bounds how many times the returned body will
	// re-request the remainder after an intermittent read failure.
	MaxRetryRequests int
}

type DownloadObjectResponse struct {
	// Body streams the object's content. It transparently resumes
	// interrupted reads; see RetryReader.
	Body io.ReadCloser

	ContentLength int64
	ContentType   string
	ETag          string
	LastModified  time.Time
	Metadata      map[string]string
}

type DeleteObjectOptions struct{}

type DeleteObjectResponse struct {
	RequestID string
}

type GetObjectPropertiesOptions struct{}

type ListObjectsOptions struct {
	// Prefix filters the listing to keys beginning with it.
	Prefix string

	MaxResults int32
}

type ListObjectsResponse struct {
	Objects []ObjectItem `json:"objects"`

	NextMarker string `json:"-"`
}
