package main

import "github.com/strrl/castor/cmd/castor/commands"

func main() {
	commands.Execute()
}
