package operations

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mongodb/amboy"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/nimbuscloud/nimbus-go-sdk/storage"
)

// Copy moves data between the local filesystem and object storage.
// Exactly one of the two arguments must be a nim:// path.
func Copy() cli.Command {
	return cli.Command{
		Name:      "cp",
		Usage:     "copy files to or from object storage",
		ArgsUsage: "<src> <dst>",
		Flags: addConfFlag(addWorkersFlag(
			cli.BoolFlag{
				Name:  recursiveFlagName + ", r",
				Usage: "copy directories and prefixes recursively",
			})...),
		Before: mergeBeforeFuncs(
			setPlainLogger,
			requireExactArgs(2, "nimbus cp <src> <dst>"),
		),
		Action: func(c *cli.Context) error {
			src := c.Args().Get(0)
			dst := c.Args().Get(1)

			if isRemotePath(src) == isRemotePath(dst) {
				return errors.Errorf("exactly one of '%s' and '%s' must be a %s path", src, dst, remoteScheme)
			}

			settings, err := NewClientSettings(c.String(confFlagName))
			if err != nil {
				return err
			}
			client, err := settings.storageClient()
			if err != nil {
				return err
			}

			ctx := context.Background()
			workers := c.Int(workersFlagName)
			recursive := c.Bool(recursiveFlagName)

			if isRemotePath(dst) {
				remote, err := parseRemotePath(dst)
				if err != nil {
					return err
				}
				return uploadPath(ctx, client, src, remote, workers, recursive)
			}

			remote, err := parseRemotePath(src)
			if err != nil {
				return err
			}
			return downloadPath(ctx, client, remote, dst, workers, recursive)
		},
	}
}

func uploadPath(ctx context.Context, client *storage.Client, src string, dst remotePath, workers int, recursive bool) error {
	stat, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "inspecting '%s'", src)
	}

	if !stat.IsDir() {
		key := dst.key
		if key == "" || strings.HasSuffix(key, "/") {
			key += filepath.Base(src)
		}
		return runTransfers(ctx, 1, []amboy.Job{newUploadObjectJob(client, dst.bucket, key, src)})
	}

	if !recursive {
		return errors.Errorf("'%s' is a directory; use --%s", src, recursiveFlagName)
	}

	var jobs []amboy.Job
	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(dst.key, "/")
		if key != "" {
			key += "/"
		}
		key += filepath.ToSlash(rel)
		jobs = append(jobs, newUploadObjectJob(client, dst.bucket, key, path))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking '%s'", src)
	}
	if len(jobs) == 0 {
		return errors.Errorf("'%s' contains no files", src)
	}

	return runTransfers(ctx, workers, jobs)
}

func downloadPath(ctx context.Context, client *storage.Client, src remotePath, dst string, workers int, recursive bool) error {
	if !recursive {
		path := dst
		if stat, err := os.Stat(dst); err == nil && stat.IsDir() {
			path = filepath.Join(dst, filepath.Base(src.key))
		}
		return runTransfers(ctx, 1, []amboy.Job{newDownloadObjectJob(client, src.bucket, src.key, path)})
	}

	pager := client.NewListObjectsPager(src.bucket, &storage.ListObjectsOptions{Prefix: src.key})

	var jobs []amboy.Job
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Objects {
			rel := strings.TrimPrefix(strings.TrimPrefix(obj.Key, src.key), "/")
			if rel == "" {
				rel = filepath.Base(obj.Key)
			}
			jobs = append(jobs, newDownloadObjectJob(client, src.bucket, obj.Key, filepath.Join(dst, filepath.FromSlash(rel))))
		}
	}
	if len(jobs) == 0 {
		return errors.Errorf("no objects match %s%s/%s", remoteScheme, src.bucket, src.key)
	}

	return runTransfers(ctx, workers, jobs)
}
