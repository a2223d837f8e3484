package main

import (
	"audiohub/cmd"
)

func main() {
	cmd.Execute()
}
