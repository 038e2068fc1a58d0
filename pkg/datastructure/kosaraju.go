package datastructure

// StronglyConnectedComponents labels every node with its strongly connected component using
// kosaraju's algorithm. both passes are iterative so long road chains do not grow the goroutine stack.
// returns the label per dense node index and the number of components.
func (g *Graph) StronglyConnectedComponents() ([]int, int) {
	n := len(g.nodes)

	type frame struct {
		u    Index
		next Index
	}
	visited := make([]bool, n)
	order := make([]Index, 0, n)
	stack := make([]frame, 0, 64)
	for s := 0; s < n; s++ {
		if visited[s] {
			continue
		}
		visited[s] = true
		stack = append(stack, frame{u: Index(s), next: g.firstOut[s]})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < g.firstOut[top.u+1] {
				v := g.edges[top.next].head
				top.next++
				if !visited[v] {
					visited[v] = true
					stack = append(stack, frame{u: v, next: g.firstOut[v]})
				}
				continue
			}
			order = append(order, top.u)
			stack = stack[:len(stack)-1]
		}
	}

	// reverse adjacency in csr form
	firstIn := make([]Index, n+1)
	for _, e := range g.edges {
		firstIn[e.head+1]++
	}
	for i := 1; i <= n; i++ {
		firstIn[i] += firstIn[i-1]
	}
	inTail := make([]Index, len(g.edges))
	pos := make([]Index, n)
	copy(pos, firstIn[:n])
	for _, e := range g.edges {
		inTail[pos[e.head]] = e.tail
		pos[e.head]++
	}

	comp := make([]int, n)
	for i := range comp {
		comp[i] = -1
	}
	count := 0
	queue := make([]Index, 0, 64)
	for i := len(order) - 1; i >= 0; i-- {
		s := order[i]
		if comp[s] >= 0 {
			continue
		}
		comp[s] = count
		queue = append(queue[:0], s)
		for len(queue) > 0 {
			u := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			for k := firstIn[u]; k < firstIn[u+1]; k++ {
				v := inTail[k]
				if comp[v] < 0 {
					comp[v] = count
					queue = append(queue, v)
				}
			}
		}
		count++
	}
	return comp, count
}

// LargestComponent the subgraph induced by the largest strongly connected component, keeping node
// ids and edge keys. g itself is returned when it is already strongly connected.
func (g *Graph) LargestComponent() *Graph {
	comp, count := g.StronglyConnectedComponents()
	if count <= 1 {
		return g
	}

	sizes := make([]int, count)
	for _, c := range comp {
		sizes[c]++
	}
	best := 0
	for c, size := range sizes {
		if size > sizes[best] {
			best = c
		}
	}

	// attributes were validated when g was built, so re-adding them cannot fail
	b := NewGraphBuilder()
	for i, n := range g.nodes {
		if comp[i] == best {
			_ = b.AddNode(n.id, n.lat, n.lon)
		}
	}
	for _, e := range g.edges {
		if comp[e.tail] == best && comp[e.head] == best {
			_ = b.AddEdgeWithKey(e.key, e.length, e.speed, e.roadClass)
		}
	}
	return b.Build()
}
