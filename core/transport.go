package core

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/gonzojive/httpcache"
)

const httpClientTimeout = 5 * time.Minute

var httpClientPool *sync.Pool

func newConfiguredBaseTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig:     &tls.Config{},
		Proxy:               http.ProxyFromEnvironment,
		DisableCompression:  false,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 16,
		MaxIdleConns:        64,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func newBaseConfiguredHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   httpClientTimeout,
		Transport: newConfiguredBaseTransport(),
		// redirects are handled by the pipeline's redirect policy
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func init() {
	httpClientPool = &sync.Pool{
		New: func() interface{} { return newBaseConfiguredHTTPClient() },
	}
}

// GetHTTPClient returns an *http.Client from the shared pool. Return
// it with PutHTTPClient when finished.
func GetHTTPClient() *http.Client { return httpClientPool.Get().(*http.Client) }

// PutHTTPClient returns a client to the pool, stripping any transport
// wrappers that were layered on top of the base transport.
func PutHTTPClient(c *http.Client) {
	c.Timeout = httpClientTimeout

	switch transport := c.Transport.(type) {
	case *http.Transport:
		transport.TLSClientConfig.InsecureSkipVerify = false
		httpClientPool.Put(c)
	case *rehttp.Transport:
		c.Transport = transport.RoundTripper
		PutHTTPClient(c)
	case *httpcache.Transport:
		c.Transport = transport.Transport
		PutHTTPClient(c)
	default:
		c.Transport = newConfiguredBaseTransport()
		httpClientPool.Put(c)
	}
}

// HTTPRetryConfiguration configures the raw retryable client used
// outside the pipeline (token fetches and other bootstrap requests
// that cannot go through a Pipeline yet).
type HTTPRetryConfiguration struct {
	MaxDelay        time.Duration
	BaseDelay       time.Duration
	MaxRetries      int
	TemporaryErrors bool
	Methods         []string
	Statuses        []int
}

// NewDefaultHTTPRetryConf returns the retry settings shared by the
// SDK's raw clients.
func NewDefaultHTTPRetryConf() HTTPRetryConfiguration {
	return HTTPRetryConfiguration{
		MaxRetries:      10,
		TemporaryErrors: true,
		MaxDelay:        5 * time.Second,
		BaseDelay:       50 * time.Millisecond,
		Methods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodPatch,
		},
		Statuses: []int{
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// GetHTTPRetryableClient returns a pooled client with a rehttp retry
// transport layered on top.
func GetHTTPRetryableClient(conf HTTPRetryConfiguration) *http.Client {
	client := GetHTTPClient()

	statusRetries := []rehttp.RetryFn{}
	if len(conf.Statuses) > 0 {
		statusRetries = append(statusRetries, rehttp.RetryStatuses(conf.Statuses...))
	} else {
		conf.TemporaryErrors = true
	}
	if conf.TemporaryErrors {
		statusRetries = append(statusRetries, rehttp.RetryTemporaryErr())
	}

	retryFns := []rehttp.RetryFn{rehttp.RetryAny(statusRetries...)}
	if len(conf.Methods) > 0 {
		retryFns = append(retryFns, rehttp.RetryHTTPMethods(conf.Methods...))
	}
	if conf.MaxRetries > 0 {
		retryFns = append(retryFns, rehttp.RetryMaxRetries(conf.MaxRetries))
	}

	client.Transport = rehttp.NewTransport(client.Transport,
		rehttp.RetryAll(retryFns...),
		rehttp.ExpJitterDelay(conf.BaseDelay, conf.MaxDelay))

	return client
}

// GetDefaultHTTPRetryableClient returns a retryable client with the
// default configuration.
func GetDefaultHTTPRetryableClient() *http.Client {
	return GetHTTPRetryableClient(NewDefaultHTTPRetryConf())
}

// GetHTTPCachingClient returns a pooled client with an in-memory HTTP
// cache layered on top, for GET-heavy control-plane polling.
func GetHTTPCachingClient() *http.Client {
	client := GetHTTPClient()
	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = client.Transport
	client.Transport = cache
	return client
}

// defaultTransport adapts a pooled client to Transporter without ever
// returning the client to the pool; pipelines live as long as their
// service client.
type defaultTransport struct {
	client *http.Client
}

func (t defaultTransport) Do(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

var (
	sharedTransport     Transporter
	sharedTransportOnce sync.Once
)

// DefaultTransport returns the Transporter used when ClientOptions
// does not supply one.
func DefaultTransport() Transporter {
	sharedTransportOnce.Do(func() {
		sharedTransport = defaultTransport{client: newBaseConfiguredHTTPClient()}
	})
	return sharedTransport
}
