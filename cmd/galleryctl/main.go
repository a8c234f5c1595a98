package main

import "github.com/saturnino-fabrica-de-software/rollcall/internal/cli"

func main() {
	cli.Execute()
}
