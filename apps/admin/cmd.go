package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db *sql.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - manage database migrations (up, down, status, ...)")
	fmt.Println("  plan -amount AMOUNT    - preview the payment plan for a course price (minor units)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	planAmount := planCmd.Int64("amount", 0, "The course price in the currency's minor units.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "plan":
		if err := planCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *planAmount <= 0 {
			planCmd.Usage()
			return errHelp
		}
		return cli.printPlan(*planAmount)
	default:
		cli.printUsage()
		return errHelp
	}
}
