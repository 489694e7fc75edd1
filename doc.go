// Package kaya partitions work across isolated, capability-restricted
// sub-agents and merges their results back into a coordinating conversation.
//
// The pieces, leaves first:
//
//   - [Registry] maps capability names to local or remote [Handle]s.
//   - [AgentDefinition] and [Roster] declare the sub-agents: prompt, model
//     selector and [CapabilityPolicy].
//   - [Coordinator] dispatches [DelegationTask]s into fresh conversations
//     that see only their agent's [CapabilitySet].
//   - [Session] owns the root conversation and tears everything down in
//     order; [Loop] drives it from line-oriented input.
//
// # Quick Start
//
//	reg := kaya.NewRegistry()
//	shells, _ := tools.RegisterAll(reg, tools.Options{})
//	defer shells.Close()
//	roster, _ := kaya.NewRoster(kaya.AgentDefinition{
//	    Name:         "researcher",
//	    Description:  "Looks things up on the web",
//	    SystemPrompt: "You are a research specialist.",
//	    Capabilities: kaya.Only("WebSearch", "WebFetch"),
//	    Model:        "sonnet",
//	})
//	coord, err := kaya.NewCoordinator(roster, reg, kaya.NewAnthropicRunner())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, _ := kaya.NewSession(coord)
//	defer session.Close()
//	stream := session.Query(ctx, "What changed in Go 1.25?")
//	for stream.Next() {
//	    if e, ok := stream.Current().(*kaya.TextDeltaEvent); ok {
//	        fmt.Print(e.Delta)
//	    }
//	}
//
// # Sub-packages
//
//   - [tools] provides local capabilities (Read, Write, Edit, Bash, Glob, Grep, ...).
//   - [bridge] launches MCP bridge processes and registers their remote capabilities.
//   - [roster] holds the built-in agent roster and loads YAML rosters.
//   - [transcript] provides ConversationStore implementations.
//   - [permission] provides permission modes for capability calls.
package kaya
