package operations

import (
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var setPlainLogger = func(c *cli.Context) error {
	sender := send.MakePlainLogger()
	threshold := level.Info
	if c.GlobalBool(verboseFlagName) {
		threshold = level.Debug
	}
	grip.Warning(sender.SetLevel(send.LevelInfo{Default: level.Info, Threshold: threshold}))
	return grip.SetSender(sender)
}

func mergeBeforeFuncs(ops ...cli.BeforeFunc) cli.BeforeFunc {
	return func(c *cli.Context) error {
		catcher := grip.NewBasicCatcher()

		for _, op := range ops {
			catcher.Add(op(c))
		}

		return catcher.Resolve()
	}
}

func requireExactArgs(n int, usage string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.NArg() != n {
			return errors.Errorf("usage: %s", usage)
		}
		return nil
	}
}

func requireStringFlag(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.String(name) == "" {
			return errors.Errorf("command line flag '%s' is required", name)
		}
		return nil
	}
}
