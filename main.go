package main

import "github.com/lepinkainen/ook/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
