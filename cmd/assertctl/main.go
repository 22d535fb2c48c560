// Command assertctl calls a running clinical assertion service.
package main

import (
	"fmt"
	"os"

	"github.com/ayush630/clinical-bert-api/cmd/assertctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
