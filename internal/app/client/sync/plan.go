package sync

import (
	"plantkeeper/internal/app/client/queue"
)

// plan - порядок разгрузки снимка очереди.
type plan struct {
	order []int
	// deps[i] - индексы мутаций, которые должны пройти раньше i
	deps [][]int
	// unresolved[i] - ссылка на временный id, чьего создания в снимке нет
	unresolved []bool
}

// buildPlan упорядочивает снимок топологически (Kahn). Ребра: мутации одной сущности
// в порядке FIFO и создание временного id раньше всех мутаций, которые на него ссылаются.
// При равенстве раньше идет тот, кто раньше в очереди.
func buildPlan(snapshot []queue.Mutation) plan {
	n := len(snapshot)
	p := plan{
		deps:       make([][]int, n),
		unresolved: make([]bool, n),
	}

	type entityKey struct {
		entity queue.EntityType
		id     string
	}
	last := make(map[entityKey]int)
	creates := make(map[string]int)
	for i, m := range snapshot {
		if m.Action == queue.ActionCreate {
			creates[m.EntityID] = i
		}
	}

	for i, m := range snapshot {
		key := entityKey{m.EntityType, m.EntityID}
		if prev, ok := last[key]; ok {
			p.deps[i] = append(p.deps[i], prev)
		}
		last[key] = i

		if m.Action != queue.ActionCreate && queue.IsTempID(m.EntityID) {
			c, ok := creates[m.EntityID]
			switch {
			case !ok:
				p.unresolved[i] = true
			case c != i && !contains(p.deps[i], c):
				p.deps[i] = append(p.deps[i], c)
			}
		}

		for _, ref := range m.References() {
			if !queue.IsTempID(ref) {
				continue
			}
			c, ok := creates[ref]
			if !ok {
				p.unresolved[i] = true
				continue
			}
			if c != i && !contains(p.deps[i], c) {
				p.deps[i] = append(p.deps[i], c)
			}
		}
	}

	indegree := make([]int, n)
	next := make([][]int, n)
	for i, ds := range p.deps {
		indegree[i] = len(ds)
		for _, d := range ds {
			next[d] = append(next[d], i)
		}
	}

	done := make([]bool, n)
	for len(p.order) < n {
		pick := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				pick = i
				break
			}
		}
		if pick < 0 {
			// цикл: остаток уходит в конец в порядке FIFO и будет заблокирован
			for i := 0; i < n; i++ {
				if !done[i] {
					p.order = append(p.order, i)
					p.unresolved[i] = true
					done[i] = true
				}
			}
			break
		}
		done[pick] = true
		p.order = append(p.order, pick)
		for _, j := range next[pick] {
			indegree[j]--
		}
	}

	return p
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
