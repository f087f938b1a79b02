package main

import "classroom-roster/cmd"

func main() {
	cmd.Execute()
}
