package operations

import (
	"context"
	"fmt"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/nimbuscloud/nimbus-go-sdk/storage"
)

// List displays buckets, or the objects in a bucket, as a table.
func List() cli.Command {
	return cli.Command{
		Name:      "ls",
		Usage:     "list buckets, or the objects under nim://bucket[/prefix]",
		ArgsUsage: "[nim://bucket[/prefix]]",
		Flags: addConfFlag(
			cli.IntFlag{
				Name:  maxResultsFlagName,
				Usage: "page size for listing requests",
			}),
		Before: setPlainLogger,
		Action: func(c *cli.Context) error {
			settings, err := NewClientSettings(c.String(confFlagName))
			if err != nil {
				return err
			}
			client, err := settings.storageClient()
			if err != nil {
				return err
			}

			ctx := context.Background()
			if c.NArg() == 0 {
				return listBuckets(ctx, client, int32(c.Int(maxResultsFlagName)))
			}

			remote, err := parseRemotePath(c.Args().First())
			if err != nil {
				return err
			}
			return listObjects(ctx, client, remote, int32(c.Int(maxResultsFlagName)))
		},
	}
}

func listBuckets(ctx context.Context, client *storage.Client, maxResults int32) error {
	pager := client.NewListBucketsPager(&storage.ListBucketsOptions{MaxResults: maxResults})

	t := tabby.New()
	t.AddHeader("Name", "Created")
	count := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, bucket := range page.Buckets {
			t.AddLine(bucket.Name, humanize.Time(bucket.CreatedOn))
			count++
		}
	}
	t.Print()
	fmt.Printf("%d buckets\n", count)
	return nil
}

func listObjects(ctx context.Context, client *storage.Client, remote remotePath, maxResults int32) error {
	pager := client.NewListObjectsPager(remote.bucket, &storage.ListObjectsOptions{
		Prefix:     remote.key,
		MaxResults: maxResults,
	})

	t := tabby.New()
	t.AddHeader("Key", "Size", "Modified")
	count := 0
	var total uint64
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Objects {
			t.AddLine(obj.Key, humanize.Bytes(uint64(obj.Size)), humanize.Time(obj.LastModified))
			count++
			total += uint64(obj.Size)
		}
	}
	t.Print()
	fmt.Printf("%d objects, %s\n", count, humanize.Bytes(total))
	return nil
}
