package main

import "github.com/frahmantamala/messaging-permissions/cmd"

func main() {
	cmd.Execute()
}
