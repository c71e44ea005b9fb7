// The adsignctl command manages displays, connection requests and
// advertisement loops of an adsign server.
package main

import "github.com/wrale/adsign/internal/adsignctl/cmd"

func main() {
	cmd.Execute()
}
