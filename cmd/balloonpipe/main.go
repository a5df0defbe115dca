// Command balloonpipe runs the dimension detection and fusion
// pipeline, either once over a single drawing or as an HTTP server.
package main

import "github.com/MeKo-Tech/balloonpipe/cmd/balloonpipe/cmd"

func main() {
	cmd.Execute()
}
