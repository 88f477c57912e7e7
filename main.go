// ./main.go
package main

import (
	"github.com/fitforge/fitroom-cli/cmd"
)

// main is the entry point for the fitroom CLI application.
func main() {
	cmd.Execute()
}
