package main

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/urfave/cli"

	nimbus "github.com/nimbuscloud/nimbus-go-sdk"
	"github.com/nimbuscloud/nimbus-go-sdk/operations"
)

func main() {
	grip.EmergencyFatal(buildApp().Run(os.Args))
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nimbus"
	app.Usage = "command line interface for the Nimbus cloud"
	app.Version = nimbus.ClientVersion

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}

	app.Commands = []cli.Command{
		operations.Login(),
		operations.List(),
		operations.Copy(),
		operations.Remove(),
		operations.Secret(),
	}

	return app
}
