package main

import "github.com/vibast-solutions/ms-go-autonomax/cmd"

func main() {
	cmd.Execute()
}
