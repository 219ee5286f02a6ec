package main

import "github.com/Togather-Foundation/listsync/cmd/server/cmd"

func main() {
	cmd.Execute()
}
