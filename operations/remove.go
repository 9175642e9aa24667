package operations

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/urfave/cli"

	"github.com/nimbuscloud/nimbus-go-sdk/storage"
)

// Remove deletes an object, a prefix of objects, or an empty bucket.
func Remove() cli.Command {
	return cli.Command{
		Name:      "rm",
		Usage:     "delete an object, or a bucket when no key is given",
		ArgsUsage: "nim://bucket[/key]",
		Flags: addConfFlag(
			cli.BoolFlag{
				Name:  recursiveFlagName + ", r",
				Usage: "delete every object under the given prefix",
			}),
		Before: mergeBeforeFuncs(
			setPlainLogger,
			requireExactArgs(1, "nimbus rm nim://bucket[/key]"),
		),
		Action: func(c *cli.Context) error {
			remote, err := parseRemotePath(c.Args().First())
			if err != nil {
				return err
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
			if remote.key == "" {
				if _, err := client.DeleteBucket(ctx, remote.bucket, nil); err != nil {
					return err
				}
				grip.Info(message.Fields{"message": "deleted bucket", "bucket": remote.bucket})
				return nil
			}

			if c.Bool(recursiveFlagName) {
				return removePrefix(ctx, client, remote)
			}

			if _, err := client.DeleteObject(ctx, remote.bucket, remote.key, nil); err != nil {
				return err
			}
			grip.Info(message.Fields{"message": "deleted object", "bucket": remote.bucket, "key": remote.key})
			return nil
		},
	}
}

func removePrefix(ctx context.Context, client *storage.Client, remote remotePath) error {
	pager := client.NewListObjectsPager(remote.bucket, &storage.ListObjectsOptions{Prefix: remote.key})

	catcher := grip.NewBasicCatcher()
	deleted := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Objects {
			if _, err := client.DeleteObject(ctx, remote.bucket, obj.Key, nil); err != nil {
				catcher.Wrapf(err, "deleting '%s'", obj.Key)
				continue
			}
			deleted++
		}
	}

	grip.Info(message.Fields{"message": "deleted objects", "bucket": remote.bucket, "prefix": remote.key, "count": deleted})
	return catcher.Resolve()
}
