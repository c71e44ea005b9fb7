// The adsign-player command runs a display: it registers, waits for
// approval and plays the loop assigned to it.
package main

import "github.com/wrale/adsign/internal/player/cmd"

func main() {
	cmd.Execute()
}
