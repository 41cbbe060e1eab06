package main

import "github.com/turtacn/ccs/cmd/cli"

func main() {
	cli.Execute()
}
