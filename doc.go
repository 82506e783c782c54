/*
Package flowrun executes conversational flows: directed graphs of typed nodes
(start, message, condition, api_call, dtmf, assistant, transfer, end) that a
session walks while it builds a transcript of bot, user and system messages.

# Concept

A Flow is pure data. An interpreter walks it one node at a time, asks an
ActionDispatcher to perform each node's effect, and parks on condition nodes
until the user answers. The engine never performs real I/O itself: the default
dispatcher only simulates timing, so the same flow can be driven from a
terminal, an HTTP API or an AI agent through MCP.

# Key Features

  - Deterministic routing: labeled edges first, legacy connections second.
  - Stale-run safety: Reset or a restart invalidates whatever is in flight.
  - Durable sessions: snapshots go to memory, file or Redis stores.
  - Observability: lifecycle hooks feed slog and Prometheus.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/flowrun"
	)

	func main() {
		// Reads ./flows/support.yaml (or a directory of flows).
		eng, err := flowrun.New("./flows/support.yaml")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		flowID, err := eng.DefaultFlow(ctx)
		if err != nil {
			log.Fatal(err)
		}

		// Answer condition nodes from stdin until the flow completes.
		if _, err := flowrun.NewRunner(os.Stdin, os.Stdout).Run(ctx, eng, flowID); err != nil {
			log.Fatal(err)
		}
	}

Servers hold many sessions at once through a session.Manager:

	mgr := eng.NewManager(session.WithStore(redisStore))
	snap, err := mgr.Start(ctx, "", "support")
	snap, accepted, err := mgr.SubmitInput(ctx, snap.ID, "I want a refund")
*/
package flowrun
