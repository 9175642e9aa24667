package operations

import (
	"context"
	"fmt"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/urfave/cli"

	"github.com/nimbuscloud/nimbus-go-sdk/secrets"
)

// Secret groups the vault subcommands.
func Secret() cli.Command {
	return cli.Command{
		Name:  "secret",
		Usage: "manage vault secrets",
		Subcommands: []cli.Command{
			secretGet(),
			secretSet(),
			secretRemove(),
			secretList(),
		},
	}
}

func secretsClientFromFlags(c *cli.Context) (*secrets.Client, error) {
	settings, err := NewClientSettings(c.String(confFlagName))
	if err != nil {
		return nil, err
	}
	return settings.secretsClient()
}

func secretGet() cli.Command {
	return cli.Command{
		Name:      "get",
		Usage:     "print a secret's value",
		ArgsUsage: "<name>",
		Flags: addConfFlag(
			cli.StringFlag{
				Name:  versionFlagName,
				Usage: "fetch a specific version instead of the latest",
			}),
		Before: mergeBeforeFuncs(
			setPlainLogger,
			requireExactArgs(1, "nimbus secret get <name>"),
		),
		Action: func(c *cli.Context) error {
			client, err := secretsClientFromFlags(c)
			if err != nil {
				return err
			}

			secret, err := client.GetSecret(context.Background(), c.Args().First(), &secrets.GetSecretOptions{
				Version: c.String(versionFlagName),
			})
			if err != nil {
				return err
			}

			fmt.Println(secret.Value)
			return nil
		},
	}
}

func secretSet() cli.Command {
	return cli.Command{
		Name:      "set",
		Usage:     "store a new version of a secret",
		ArgsUsage: "<name> <value>",
		Flags:     addConfFlag(),
		Before: mergeBeforeFuncs(
			setPlainLogger,
			requireExactArgs(2, "nimbus secret set <name> <value>"),
		),
		Action: func(c *cli.Context) error {
			client, err := secretsClientFromFlags(c)
			if err != nil {
				return err
			}

			secret, err := client.SetSecret(context.Background(), c.Args().Get(0), c.Args().Get(1), nil)
			if err != nil {
				return err
			}

			grip.Info(message.Fields{
				"message": "secret stored",
				"name":    secret.Name,
				"version": secret.Version,
			})
			return nil
		},
	}
}

func secretRemove() cli.Command {
	return cli.Command{
		Name:      "rm",
		Usage:     "delete a secret, waiting for the deletion to finish",
		ArgsUsage: "<name>",
		Flags: addConfFlag(
			cli.BoolFlag{
				Name:  purgeFlagName,
				Usage: "permanently purge the secret once the deletion completes",
			}),
		Before: mergeBeforeFuncs(
			setPlainLogger,
			requireExactArgs(1, "nimbus secret rm <name>"),
		),
		Action: func(c *cli.Context) error {
			client, err := secretsClientFromFlags(c)
			if err != nil {
				return err
			}

			ctx := context.Background()
			name := c.Args().First()

			poller, err := client.DeleteSecret(ctx, name, nil)
			if err != nil {
				return err
			}
			deleted, err := poller.PollUntilDone(ctx, nil)
			if err != nil {
				return err
			}

			fields := message.Fields{"message": "secret deleted", "name": deleted.Name}
			if deleted.ScheduledPurgeDate != nil {
				fields["purges"] = humanize.Time(*deleted.ScheduledPurgeDate)
			}
			grip.Info(fields)

			if !c.Bool(purgeFlagName) {
				return nil
			}
			if err := client.PurgeSecret(ctx, name, nil); err != nil {
				return err
			}
			grip.Info(message.Fields{"message": "secret purged", "name": name})
			return nil
		},
	}
}

func secretList() cli.Command {
	return cli.Command{
		Name:   "list",
		Usage:  "list the vault's secrets",
		Flags:  addConfFlag(),
		Before: setPlainLogger,
		Action: func(c *cli.Context) error {
			client, err := secretsClientFromFlags(c)
			if err != nil {
				return err
			}

			pager := client.NewListSecretsPager(nil)
			t := tabby.New()
			t.AddHeader("Name", "Version", "Updated")
			for pager.More() {
				page, err := pager.NextPage(context.Background())
				if err != nil {
					return err
				}
				for _, item := range page.Secrets {
					t.AddLine(item.Name, item.Version, humanize.Time(item.Attributes.UpdatedOn))
				}
			}
			t.Print()
			return nil
		},
	}
}
