// Command atlctl queries Bamboo and Bitbucket Server from the shell and
// prints one JSON object per line.
package main

import (
	"os"
)

const version = "0.1.0"

func main() {
	if err := NewRootCommand(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
