// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

// Argweaver is a tool for ancestral recombination graph threading.
package main

import (
	"github.com/bredelings/argweaver/cmd/argweaver/resample"
	"github.com/bredelings/argweaver/cmd/argweaver/thread"
	"github.com/bredelings/argweaver/cmd/argweaver/viterbi"
	"github.com/js-arias/command"
)

var app = &command.Command{
	Usage: "argweaver <command> [<argument>...]",
	Short: "a tool for ancestral recombination graph threading",
}

func init() {
	app.Add(thread.Command)
	app.Add(viterbi.Command)
	app.Add(resample.Command)
}

func main() {
	app.Main()
}
