// Command hashpw prints the bcrypt hash to put in ADMIN_PASSWORD_HASH.
//
//	hashpw --cost 12 'my admin password'
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flagSet := pflag.NewFlagSet("hashpw", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	cost := flagSet.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "usage: hashpw [--cost N] <password>")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return 2
	}
	if *cost < bcrypt.MinCost || *cost > bcrypt.MaxCost {
		fmt.Fprintf(stderr, "hashpw: cost must be between %d and %d\n", bcrypt.MinCost, bcrypt.MaxCost)
		return 2
	}
	hash, err := utils.HashPassword(flagSet.Arg(0), *cost)
	if err != nil {
		fmt.Fprintln(stderr, "hashpw:", err)
		return 1
	}
	fmt.Fprintln(stdout, hash)
	return 0
}
