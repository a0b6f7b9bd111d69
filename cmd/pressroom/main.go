package main

import "pressroom/internal/cli"

func main() {
	cli.Execute()
}
