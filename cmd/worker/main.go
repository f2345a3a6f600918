// Command worker runs a single queue worker in the foreground. It is
// equivalent to `queuectl worker run` and takes the same flags, which is
// handy under a process supervisor such as systemd.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joshu-sajeev/queuectl/internal/cli"
)

func main() {
	root := cli.NewRootCmd()
	root.SetArgs(append([]string{"worker", "run"}, os.Args[1:]...))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", cli.Describe(err))
		os.Exit(1)
	}
}
