package main

import "factory-hook/internal/cli"

func main() {
	cli.Execute()
}
