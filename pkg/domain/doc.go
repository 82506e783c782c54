/*
Package domain contains the core models of the flowrun engine.

It defines the conversational graph (Flow, Node, Edge, Condition), the per-run snapshot
(Session, Message, Status) and the result contract between the interpreter and action
dispatchers. The package is kept free of I/O and persistence concerns.

# Key Entities

  - Flow: the read-only graph of nodes and edges describing one conversational script.
  - Node: a step with a type-specific payload (NodeData), e.g. MessageData or ConditionData.
  - Edge: a labeled or default connection between two nodes.
  - Session: the snapshot of a run (current node, status, transcript).
  - DispatchResult: what a dispatcher produced for a node (messages, pauses, suspension).
*/
package domain
