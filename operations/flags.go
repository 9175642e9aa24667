package operations

import (
	"github.com/urfave/cli"
)

const (
	confFlagName    = "conf"
	verboseFlagName = "verbose"

	endpointFlagName     = "endpoint"
	tenantFlagName       = "tenant"
	clientIDFlagName     = "client-id"
	clientSecretFlagName = "client-secret"
	accountFlagName      = "account"
	accountKeyFlagName   = "account-key"
	vaultFlagName        = "vault"

	workersFlagName    = "workers"
	recursiveFlagName  = "recursive"
	maxResultsFlagName = "max-results"
	versionFlagName    = "version"
	purgeFlagName      = "purge"
)

func addConfFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  confFlagName + ", c",
		Usage: "path to the client configuration file",
	})
}

func addWorkersFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.IntFlag{
		Name:  workersFlagName + ", j",
		Usage: "number of parallel transfers",
		Value: 4,
	})
}
