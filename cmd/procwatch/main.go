package main

import "github.com/procwatch/procwatch/internal/cli"

func main() {
	cli.Execute()
}
