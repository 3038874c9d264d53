package main

import "github.com/dnguyenv/conductor/internal/cli"

func main() {
	cli.Execute()
}
