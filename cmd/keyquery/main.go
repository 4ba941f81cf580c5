package main

import "github.com/valentindosimont/keyquery/internal/cli"

func main() {
	cli.Execute()
}
