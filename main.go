package main

import "github.com/pders01/repour/cmd"

func main() {
	cmd.Execute()
}
