package main

import "github.com/rudransh-shrivastava/peer-relay/internal/client/cmd"

func main() {
	cmd.Execute()
}
