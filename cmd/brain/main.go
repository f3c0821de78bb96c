package main

import "marketing-brain/internal/cli"

func main() {
	cli.Execute()
}
