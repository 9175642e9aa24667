package operations

import (
	"github.com/mongodb/grip"
	"github.com/urfave/cli"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
)

// Login writes the client configuration file used by every other
// command.
func Login() cli.Command {
	return cli.Command{
		Name:  "login",
		Usage: "store connection settings in the client configuration file",
		Flags: addConfFlag(
			cli.StringFlag{
				Name:  endpointFlagName,
				Usage: "identity endpoint to request tokens from",
				Value: nimbus.DefaultIdentityEndpoint,
			},
			cli.StringFlag{
				Name:  tenantFlagName,
				Usage: "tenant the service principal belongs to",
			},
			cli.StringFlag{
				Name:  clientIDFlagName,
				Usage: "service principal client ID",
			},
			cli.StringFlag{
				Name:  clientSecretFlagName,
				Usage: "service principal client secret",
			},
			cli.StringFlag{
				Name:  accountFlagName,
				Usage: "storage account name, for shared key authentication",
			},
			cli.StringFlag{
				Name:  accountKeyFlagName,
				Usage: "base64 storage account key, for shared key authentication",
			},
			cli.StringFlag{
				Name:  "storage",
				Usage: "storage service endpoint URL",
			},
			cli.StringFlag{
				Name:  vaultFlagName,
				Usage: "vault URL for secret commands",
			}),
		Before: setPlainLogger,
		Action: func(c *cli.Context) error {
			settings := &ClientSettings{
				IdentityEndpoint: c.String(endpointFlagName),
				TenantID:         c.String(tenantFlagName),
				ClientID:         c.String(clientIDFlagName),
				ClientSecret:     c.String(clientSecretFlagName),
				StorageEndpoint:  c.String("storage"),
				StorageAccount:   c.String(accountFlagName),
				StorageKey:       c.String(accountKeyFlagName),
				VaultURL:         c.String(vaultFlagName),
			}

			if err := settings.Write(c.String(confFlagName)); err != nil {
				return err
			}

			grip.Info("settings saved")
			return nil
		},
	}
}
