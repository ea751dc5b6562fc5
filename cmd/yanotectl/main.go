// yanotectl is the yanote admin CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(loadEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
