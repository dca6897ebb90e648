// Command geopulse is the command-line companion for a GeoPulse server.
package main

import (
	"os"
	_ "time/tzdata" // user time zones must resolve on hosts without zoneinfo

	"github.com/pkordes/geopulse-companion/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
