package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joshu-sajeev/queuectl/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		os.Exit(1)
	}
}
