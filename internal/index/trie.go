package index

// trieNode children are keyed by byte so that lines which are not valid
// UTF-8 still compare exactly.
type trieNode struct {
	children map[byte]*trieNode
	terminal bool
}

type trie struct {
	root  *trieNode
	n     int
	nodes int
}

func newTrie(lines []string) *trie {
	t := &trie{root: &trieNode{}, nodes: 1}
	for _, line := range lines {
		t.insert(line)
	}
	t.n = len(lines)
	return t
}

func (t *trie) insert(line string) {
	node := t.root
	for i := 0; i < len(line); i++ {
		if node.children == nil {
			node.children = make(map[byte]*trieNode, 1)
		}
		next, ok := node.children[line[i]]
		if !ok {
			next = &trieNode{}
			node.children[line[i]] = next
			t.nodes++
		}
		node = next
	}
	node.terminal = true
}

func (t *trie) Mode() Mode { return ModeTrie }
func (t *trie) Len() int   { return t.n }

// Contains requires the walk to end on a terminal node; a bare prefix of
// some line is not a match.
func (t *trie) Contains(target string) bool {
	node := t.root
	for i := 0; i < len(target); i++ {
		next, ok := node.children[target[i]]
		if !ok {
			return false
		}
		node = next
	}
	return node.terminal
}

// Nodes reports the number of trie nodes, root included.
func (t *trie) Nodes() int { return t.nodes }
