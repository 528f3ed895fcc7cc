// ./main.go
package main

import (
	"github.com/xkilldash9x/webpilot/cmd"
)

// main is the entry point for the webpilot server.
func main() {
	cmd.Execute()
}
