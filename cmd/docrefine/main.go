package main

import "github.com/MeKo-Tech/docrefine/cmd/docrefine/cmd"

func main() {
	cmd.Execute()
}
