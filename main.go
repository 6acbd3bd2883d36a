package main

import "github.com/vibast-solutions/ms-go-wellness-payments/cmd"

func main() {
	cmd.Execute()
}
