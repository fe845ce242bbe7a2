package main

import "github.com/ValentinKolb/rDBM/cmd"

func main() {
	cmd.Execute()
}
