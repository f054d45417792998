package main

import "github.com/user/hostcomply/cmd"

func main() {
	cmd.Execute()
}
