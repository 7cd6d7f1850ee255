package ai

import "github.com/modelcore/agent/core"

// AIClient re-exports core.AIClient for callers that only need the ai
// package import.
type AIClient = core.AIClient
