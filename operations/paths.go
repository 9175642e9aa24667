package operations

import (
	"strings"

	"github.com/pkg/errors"
)

const remoteScheme = "nim://"

type remotePath struct {
	bucket string
	key    string
}

func isRemotePath(p string) bool {
	return strings.HasPrefix(p, remoteScheme)
}

// parseRemotePath splits "nim://bucket/key" into its parts. The key
// may be empty.
func parseRemotePath(p string) (remotePath, error) {
	if !isRemotePath(p) {
		return remotePath{}, errors.Errorf("'%s' is not a remote path; expected %sbucket/key", p, remoteScheme)
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(p, remoteScheme), "/")
	if bucket == "" {
		return remotePath{}, errors.Errorf("'%s' is missing a bucket name", p)
	}
	return remotePath{bucket: bucket, key: key}, nil
}
