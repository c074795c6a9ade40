package node

import "fmt"

// Kind is the type tag of a node in a graph document.
type Kind string

// Node kinds. Only a subset has built-in constructors; the rest are
// registered by the embedding application.
const (
	KindStart              Kind = "start"
	KindEnd                Kind = "end"
	KindAnswer             Kind = "answer"
	KindIfElse             Kind = "if-else"
	KindTemplateTransform  Kind = "template-transform"
	KindHumanInput         Kind = "human-input"
	KindVariableAggregator Kind = "variable-aggregator"
	KindCode               Kind = "code"
	KindLLM                Kind = "llm"
	KindTool               Kind = "tool"
	KindHTTPRequest        Kind = "http-request"
	KindKnowledgeRetrieval Kind = "knowledge-retrieval"
	KindTriggerWebhook     Kind = "trigger-webhook"
)

var kinds = map[Kind]bool{
	KindStart:              true,
	KindEnd:                true,
	KindAnswer:             true,
	KindIfElse:             true,
	KindTemplateTransform:  true,
	KindHumanInput:         true,
	KindVariableAggregator: true,
	KindCode:               true,
	KindLLM:                true,
	KindTool:               true,
	KindHTTPRequest:        true,
	KindKnowledgeRetrieval: true,
	KindTriggerWebhook:     true,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return kinds[k]
}

// IsRoot reports whether nodes of this kind start a graph.
func (k Kind) IsRoot() bool {
	return k == KindStart || k == KindTriggerWebhook
}

// ParseKind converts a type tag to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
