// Command imagine generates images from the terminal.
package main

import "github.com/dmorgan81/imagine/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
