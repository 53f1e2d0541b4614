package analysis

import (
	"math"
	"sort"

	"anvil/internal/ir"
)

// Schedule assigns every live in-scope primop to exactly one continuation.
type Schedule map[*ir.Continuation][]*ir.PrimOp

func memFirst(t ir.NodeTag) bool {
	switch t {
	case ir.TagEnter, ir.TagSlot, ir.TagLoad, ir.TagStore:
		return true
	}
	return false
}

// primopLess is the deterministic tie-break: memory ops before other ops of
// equal readiness, then ascending global id.
func primopLess(a, b ir.Def) bool {
	if a.Tag() == b.Tag() {
		return a.GID() < b.GID()
	}
	am, bm := memFirst(a.Tag()), memFirst(b.Tag())
	if am != bm {
		return am
	}
	return a.GID() < b.GID()
}

// ScheduleEarly places every primop into the first continuation whose
// parameters make all its operands available. A work queue is seeded with
// the parameters of each continuation in forward RPO; a primop becomes
// ready when its pending-operand counter reaches zero.
func ScheduleEarly(s *Scope) Schedule {
	schedule := make(Schedule)
	var queue []ir.Def
	numPlaced := make(map[ir.Def]int)
	seen := make(map[ir.Def]struct{})
	enqueue := func(d ir.Def) {
		if s.Contains(d) {
			queue = append(queue, d)
		}
	}

	for _, cont := range s.RPO() {
		for _, p := range cont.Params() {
			enqueue(p)
		}

		for len(queue) > 0 {
			def := queue[0]
			queue = queue[1:]
			if p, ok := def.(*ir.PrimOp); ok {
				schedule[cont] = append(schedule[cont], p)
			}

			var todo []ir.Def
			for _, use := range def.Uses() {
				u := use.User
				if _, isCont := u.(*ir.Continuation); isCont {
					continue
				}
				if _, visited := seen[u]; visited {
					numPlaced[u]--
				} else {
					seen[u] = struct{}{}
					n := 0
					for _, op := range u.Ops() {
						if _, isCont := op.(*ir.Continuation); isCont {
							continue
						}
						if s.Contains(op) {
							n++
						}
					}
					numPlaced[u] = n - 1
				}
				if numPlaced[u] == 0 {
					todo = append(todo, u)
				}
			}

			sort.SliceStable(todo, func(i, j int) bool { return primopLess(todo[i], todo[j]) })
			for _, d := range todo {
				enqueue(d)
			}
		}
	}

	return schedule
}

// scheduleLate computes the late placement and returns, alongside the
// schedule, each def's late continuation (the least common dominator of
// all its in-scope users).
func scheduleLate(s *Scope) (Schedule, map[ir.Def]*ir.Continuation) {
	def2num := make(map[ir.Def]int)
	for _, d := range s.AllDefs() {
		p, ok := d.(*ir.PrimOp)
		if !ok {
			continue
		}
		num := 0
		for _, use := range p.Uses() {
			if s.Contains(use.User) {
				num++
			}
		}
		if num != 0 { // not dead
			def2num[p] = num
		}
	}

	schedule := make(Schedule)
	domtree := s.DomTree()
	def2late := make(map[ir.Def]*ir.Continuation)
	var zero []ir.Def

	decrease := func(def ir.Def) {
		for _, op := range def.Ops() {
			p, ok := op.(*ir.PrimOp)
			if !ok || !s.Contains(op) {
				continue
			}
			if _, tracked := def2num[p]; !tracked {
				continue
			}
			def2num[p]--
			if def2num[p] == 0 {
				zero = append(zero, p)
			}
		}
	}

	rpo := s.RPO()
	for i := len(rpo) - 1; i >= 0; i-- {
		cur := rpo[i]
		decrease(cur)
		def2late[cur] = cur

		for todo := true; todo; {
			sort.SliceStable(zero, func(a, b int) bool { return !primopLess(zero[a], zero[b]) })
			remove := zero
			if len(zero) == 0 {
				todo = false
			}
			zero = nil

			for _, z := range remove {
				p := z.(*ir.PrimOp)
				late := cur
				for _, use := range p.Uses() {
					if s.Contains(use.User) {
						late = domtree.LCA(late, def2late[use.User])
					}
				}
				def2late[p] = late
				schedule[late] = append(schedule[late], p)
			}
			for _, z := range remove {
				decrease(z)
			}
		}
	}

	// visit order within a continuation is latest-first; flip it
	for c := range schedule {
		list := schedule[c]
		for a, b := 0, len(list)-1; a < b; a, b = a+1, b-1 {
			list[a], list[b] = list[b], list[a]
		}
	}
	return schedule, def2late
}

// ScheduleLate places every primop into the least common dominator of its
// users.
func ScheduleLate(s *Scope) Schedule {
	schedule, _ := scheduleLate(s)
	return schedule
}

// ScheduleSmart walks from each primop's late continuation up the dominator
// chain toward its early continuation and picks the continuation with the
// minimum loop depth (ties resolve closest to late). Enter and slot are
// always placed early so they precede dependent loads, stores and leas;
// leave is always placed late so it never escapes its frame.
func ScheduleSmart(s *Scope) Schedule {
	smart := make(Schedule)
	domtree := s.DomTree()
	loopinfo := s.LoopInfo()
	early := ScheduleEarly(s)
	_, def2late := scheduleLate(s)

	for _, contEarly := range s.RPO() {
		for _, p := range early[contEarly] {
			late, ok := def2late[p]
			if !ok {
				continue // dead
			}
			best := late
			switch p.Tag() {
			case ir.TagEnter, ir.TagSlot:
				best = contEarly
			case ir.TagLeave:
				// keep at late
			default:
				depth := math.MaxInt
				for i := late; ; {
					if d := loopinfo.Depth(i); d < depth {
						best = i
						depth = d
					}
					if i == contEarly {
						break
					}
					next := domtree.IDom(i)
					if next == i {
						break
					}
					i = next
				}
			}
			smart[best] = append(smart[best], p)
		}
	}

	return smart
}
