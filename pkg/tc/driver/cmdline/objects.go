package cmdline

// cQDisc is a qdisc of "tc -json qdisc list" output, root qdiscs have no parent
type cQDisc struct {
	Kind   string `json:"kind"`
	Handle string `json:"handle"`
	Parent string `json:"parent,omitempty"`
	Root   bool   `json:"root,omitempty"`
}

type cChain struct {
	Parent string `json:"parent"`
	Chain  uint16 `json:"chain"`
}
