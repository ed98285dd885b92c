package main

import "github.com/orrn/printsim/internal/cli"

func main() {
	cli.Execute()
}
