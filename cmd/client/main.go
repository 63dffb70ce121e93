package main

import "lifelog/cmd/client/cmd"

func main() {
	cmd.Execute()
}
