package main

import "github.com/phux/apicheck/cmd"

func main() {
	cmd.Execute()
}
