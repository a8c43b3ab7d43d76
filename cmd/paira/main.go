// Command paira supervises the bot worker and reports machine identity.
package main

import (
	"fmt"
	"os"

	"github.com/tessro/paira/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "🤖 Error: %v\n", err)
		os.Exit(1)
	}
}
