package main

import "github.com/torguapi/torguapi/cmd"

func main() {
	cmd.Execute()
}
