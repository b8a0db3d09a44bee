package main

import "github.com/timvw/persona-survey/cmd"

func main() {
	cmd.Execute()
}
