package main

import "github.com/anotherme-social/identity-service/cmd"

func main() {
	cmd.Execute()
}
