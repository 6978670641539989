// Package main provides the timelink CLI.
package main

import "github.com/mesh-intelligence/timelink/internal/cli"

func main() {
	cli.Execute()
}
