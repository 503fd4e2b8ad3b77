package main

import "github.com/nsightlabs/spendintel/cmd"

func main() {
	cmd.Execute()
}
