package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/core"
)

const moduleName = "storage"

// tokenScope is the resource scope requested for bearer-token
// authentication against the storage service.
const tokenScope = "https://storage.nimbus.cloud/.default"

// Client talks to a Nimbus storage account.
type Client struct {
	endpoint   string
	apiVersion string
	pl         core.Pipeline
}

// NewClient builds a client that authenticates with a bearer token.
func NewClient(endpoint string, cred core.TokenCredential, opts *core.ClientOptions) (*Client, error) {
	return newClient(endpoint, core.NewBearerTokenPolicy(cred, tokenScope), opts)
}

// NewClientWithSharedKey builds a client that signs every request with
// the account's shared key.
func NewClientWithSharedKey(endpoint string, cred *SharedKeyCredential, opts *core.ClientOptions) (*Client, error) {
	return newClient(endpoint, newSharedKeyPolicy(cred), opts)
}

func newClient(endpoint string, auth core.Policy, opts *core.ClientOptions) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || !u.IsAbs() {
		return nil, errors.Errorf("endpoint '%s' is not an absolute URL", endpoint)
	}

	apiVersion := nimbus.DefaultAPIVersion
	if opts != nil && opts.APIVersion != "" {
		apiVersion = opts.APIVersion
	}

	pl := core.NewPipeline(moduleName, nimbus.ClientVersion, core.PipelineOptions{
		PerRetry: []core.Policy{auth},
	}, opts)

	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiVersion: apiVersion,
		pl:         pl,
	}, nil
}

// Endpoint returns the service URL this client targets.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) newRequest(ctx context.Context, method string, query url.Values, paths ...string) (*core.Request, error) {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = core.EscapePath(p)
	}
	req, err := core.NewRequest(ctx, method, core.JoinPaths(c.endpoint, escaped...))
	if err != nil {
		return nil, err
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	core.EncodeQueryParams(req, query)
	return req, nil
}

// CreateBucket creates a bucket. Creating a bucket that already exists
// fails with a BucketAlreadyExists response error.
func (c *Client) CreateBucket(ctx context.Context, bucket string, opts *CreateBucketOptions) (CreateBucketResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPut, nil, bucket)
	if err != nil {
		return CreateBucketResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return CreateBucketResponse{}, errors.Wrapf(err, "creating bucket '%s'", bucket)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusCreated) {
		return CreateBucketResponse{}, core.NewResponseError(resp)
	}
	return CreateBucketResponse{RequestID: core.RequestID(resp)}, nil
}

// DeleteBucket deletes a bucket. The bucket must be empty.
func (c *Client) DeleteBucket(ctx context.Context, bucket string, opts *DeleteBucketOptions) (DeleteBucketResponse, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, nil, bucket)
	if err != nil {
		return DeleteBucketResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return DeleteBucketResponse{}, errors.Wrapf(err, "deleting bucket '%s'", bucket)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusAccepted, http.StatusNoContent) {
		return DeleteBucketResponse{}, core.NewResponseError(resp)
	}
	return DeleteBucketResponse{RequestID: core.RequestID(resp)}, nil
}

// NewListBucketsPager lists the account's buckets page by page.
func (c *Client) NewListBucketsPager(opts *ListBucketsOptions) *core.Pager[ListBucketsResponse] {
	var marker string
	return core.NewPager(core.PagingHandler[ListBucketsResponse]{
		More: func(page ListBucketsResponse) bool {
			return page.NextMarker != ""
		},
		Fetcher: func(ctx context.Context, current *ListBucketsResponse) (ListBucketsResponse, error) {
			if current != nil {
				marker = current.NextMarker
			}
			query := url.Values{"comp": []string{"list"}}
			if marker != "" {
				query.Set("marker", marker)
			}
			if opts != nil && opts.MaxResults > 0 {
				query.Set("maxresults", strconv.FormatInt(int64(opts.MaxResults), 10))
			}
			req, err := c.newRequest(ctx, http.MethodGet, query)
			if err != nil {
				return ListBucketsResponse{}, err
			}
			resp, err := c.pl.Do(req)
			if err != nil {
				return ListBucketsResponse{}, errors.Wrap(err, "listing buckets")
			}
			defer core.Drain(resp)
			if !core.HasStatusCode(resp, http.StatusOK) {
				return ListBucketsResponse{}, core.NewResponseError(resp)
			}
			var page ListBucketsResponse
			if err := core.UnmarshalAsJSON(resp, &page); err != nil {
				return ListBucketsResponse{}, err
			}
			page.NextMarker = resp.Header.Get(nimbus.NextMarkerHeader)
			return page, nil
		},
	})
}

// UploadObject uploads the whole body as one PUT. The body must be
// seekable so the retry policy can replay it.
func (c *Client) UploadObject(ctx context.Context, bucket, key string, body io.ReadSeekCloser, opts *UploadObjectOptions) (UploadObjectResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPut, nil, bucket, key)
	if err != nil {
		return UploadObjectResponse{}, err
	}

	contentType := nimbus.ContentTypeOctet
	if opts != nil && opts.ContentType != "" {
		contentType = opts.ContentType
	}
	if err := req.SetBody(body, contentType); err != nil {
		return UploadObjectResponse{}, err
	}

	if opts != nil {
		for k, v := range opts.Metadata {
			req.Raw().Header.Set(nimbus.MetadataHeaderPrefix+k, v)
		}
		if opts.ComputeMD5 || opts.ComputeCRC64 {
			req.SetOperationValue(core.ChecksumOptions{
				ComputeMD5:   opts.ComputeMD5,
				ComputeCRC64: opts.ComputeCRC64,
			})
		}
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return UploadObjectResponse{}, errors.Wrapf(err, "uploading object '%s/%s'", bucket, key)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusCreated) {
		return UploadObjectResponse{}, core.NewResponseError(resp)
	}
	return UploadObjectResponse{
		ETag:      resp.Header.Get("ETag"),
		RequestID: core.RequestID(resp),
	}, nil
}

// DownloadObject streams an object's content. The returned Body
// resumes interrupted reads with ranged re-requests pinned to the
// object's ETag.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string, opts *DownloadObjectOptions) (DownloadObjectResponse, error) {
	if opts == nil {
		opts = &DownloadObjectOptions{}
	}

	req, err := c.newRequest(ctx, http.MethodGet, nil, bucket, key)
	if err != nil {
		return DownloadObjectResponse{}, err
	}
	if r := opts.Range.format(); r != "" {
		req.Raw().Header.Set("Range", r)
	}
	if opts.ValidateChecksum {
		req.SetOperationValue(core.ChecksumOptions{ValidateDownload: true})
	}

	resp, err := c.pl.Do(req)
	if err != nil {
		return DownloadObjectResponse{}, errors.Wrapf(err, "downloading object '%s/%s'", bucket, key)
	}
	if !core.HasStatusCode(resp, http.StatusOK, http.StatusPartialContent) {
		defer core.Drain(resp)
		return DownloadObjectResponse{}, core.NewResponseError(resp)
	}

	info := downloadInfo{
		bucket: bucket,
		key:    key,
		etag:   resp.Header.Get("ETag"),
		offset: opts.Range.Offset,
		count:  opts.Range.Count,
	}
	return DownloadObjectResponse{
		Body:          newRetryReader(ctx, c, resp, info, opts.MaxRetryRequests),
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get(nimbus.ContentTypeHeader),
		ETag:          info.etag,
		LastModified:  parseHTTPDate(resp.Header.Get("Last-Modified")),
		Metadata:      metadataFromHeaders(resp.Header),
	}, nil
}

// DeleteObject removes an object. Deleting a missing object fails with
// an ObjectNotFound response error.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string, opts *DeleteObjectOptions) (DeleteObjectResponse, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, nil, bucket, key)
	if err != nil {
		return DeleteObjectResponse{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return DeleteObjectResponse{}, errors.Wrapf(err, "deleting object '%s/%s'", bucket, key)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusAccepted, http.StatusNoContent) {
		return DeleteObjectResponse{}, core.NewResponseError(resp)
	}
	return DeleteObjectResponse{RequestID: core.RequestID(resp)}, nil
}

// GetObjectProperties fetches an object's system properties and user
// metadata without its content.
func (c *Client) GetObjectProperties(ctx context.Context, bucket, key string, opts *GetObjectPropertiesOptions) (ObjectProperties, error) {
	req, err := c.newRequest(ctx, http.MethodHead, nil, bucket, key)
	if err != nil {
		return ObjectProperties{}, err
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return ObjectProperties{}, errors.Wrapf(err, "getting properties of object '%s/%s'", bucket, key)
	}
	defer core.Drain(resp)
	if !core.HasStatusCode(resp, http.StatusOK) {
		return ObjectProperties{}, core.NewResponseError(resp)
	}
	return ObjectProperties{
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get(nimbus.ContentTypeHeader),
		ETag:          resp.Header.Get("ETag"),
		LastModified:  parseHTTPDate(resp.Header.Get("Last-Modified")),
		Metadata:      metadataFromHeaders(resp.Header),
	}, nil
}

// NewListObjectsPager lists a bucket's objects page by page, filtered
// by prefix.
func (c *Client) NewListObjectsPager(bucket string, opts *ListObjectsOptions) *core.Pager[ListObjectsResponse] {
	var marker string
	return core.NewPager(core.PagingHandler[ListObjectsResponse]{
		More: func(page ListObjectsResponse) bool {
			return page.NextMarker != ""
		},
		Fetcher: func(ctx context.Context, current *ListObjectsResponse) (ListObjectsResponse, error) {
			if current != nil {
				marker = current.NextMarker
			}
			query := url.Values{"comp": []string{"list"}}
			if opts != nil && opts.Prefix != "" {
				query.Set("prefix", opts.Prefix)
			}
			if opts != nil && opts.MaxResults > 0 {
				query.Set("maxresults", strconv.FormatInt(int64(opts.MaxResults), 10))
			}
			if marker != "" {
				query.Set("marker", marker)
			}
			req, err := c.newRequest(ctx, http.MethodGet, query, bucket)
			if err != nil {
				return ListObjectsResponse{}, err
			}
			resp, err := c.pl.Do(req)
			if err != nil {
				return ListObjectsResponse{}, errors.Wrapf(err, "listing objects in bucket '%s'", bucket)
			}
			defer core.Drain(resp)
			if !core.HasStatusCode(resp, http.StatusOK) {
				return ListObjectsResponse{}, core.NewResponseError(resp)
			}
			var page ListObjectsResponse
			if err := core.UnmarshalAsJSON(resp, &page); err != nil {
				return ListObjectsResponse{}, err
			}
			page.NextMarker = resp.Header.Get(nimbus.NextMarkerHeader)
			return page, nil
		},
	})
}

func metadataFromHeaders(header http.Header) map[string]string {
	var md map[string]string
	for name := range header {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, nimbus.MetadataHeaderPrefix) {
			continue
		}
		if md == nil {
			md = map[string]string{}
		}
		md[strings.TrimPrefix(lower, nimbus.MetadataHeaderPrefix)] = header.Get(name)
	}
	return md
}

func parseHTTPDate(value string) (t time.Time) {
	if value == "" {
		return
	}
	t, _ = http.ParseTime(value)
	return
}
