// Command dynleaderboards replays recorded race telemetry through the ranking
// engine and prints the configured leaderboards.
package main

import (
	"github.com/dynleaderboards/dynleaderboards/cmd"
)

func main() {
	cmd.Execute()
}
