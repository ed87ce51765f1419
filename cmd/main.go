package main

import (
	"fmt"
	"os"

	"hirepal/internal/cli"
)

func main() {
	args := os.Args[1:]
	// The Lambda runtime starts the bootstrap binary without arguments.
	if len(args) == 0 && os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		args = []string{"lambda"}
	}
	if err := cli.ExecuteArgs(args); err != nil {
		fmt.Fprintln(os.Stderr, "hirepal:", err)
		os.Exit(1)
	}
}
