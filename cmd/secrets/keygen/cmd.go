package keygen

import (
	"fmt"

	"github.com/andrebq/secrets/secret"
	"github.com/urfave/cli/v2"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Print a new random root key, ready to be exported as SECRETS_ROOT_KEY",
		Action: func(ctx *cli.Context) error {
			val, err := secret.GenerateKey(nil)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(ctx.App.Writer, val)
			return err
		},
	}
}
