// Command matchctl drives a maximal-matching run: it loads an edge list,
// partitions it across P strongly-sublinear-memory ranks, runs the phase
// loop to a maximal matching, and writes the resulting metrics artifact.
package main

import "github.com/sublinear-mpc/matching/cmd/matchctl/cmd"

func main() {
	cmd.Execute()
}
