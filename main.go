package main

import "github.com/oracleplane/oracleplane/cmd"

func main() {
	cmd.Execute()
}
