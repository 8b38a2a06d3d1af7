package webx

import "sort"

// ResolveHandler implements C4: picks the unique best handler on route
// for the inbound (method, Content-Type, Accept) per spec.md §4.4.
func ResolveHandler(route *Route, method string, contentType mediaType, accept []acceptEntry) (*Handler, error) {
	all := route.handlersSnapshot()
	if len(all) == 0 {
		return nil, newProblem(KindMethodNotAllowed, "route has no handlers").withMethods(nil)
	}

	// 1. Method filter.
	byMethod := make([]*Handler, 0, len(all))
	for _, h := range all {
		if h.Method == method {
			byMethod = append(byMethod, h)
		}
	}
	if len(byMethod) == 0 {
		return nil, newProblem(KindMethodNotAllowed, "no handler for method "+method).withMethods(route.Methods())
	}

	// 2. Consumes filter.
	byConsumes := make([]*Handler, 0, len(byMethod))
	for _, h := range byMethod {
		if consumesCompatible(h.Consumes, contentType) {
			byConsumes = append(byConsumes, h)
		}
	}
	if len(byConsumes) == 0 {
		p := newProblem(KindNoHandlerResolved, "no handler consumes the request's Content-Type")
		p.Candidates = byMethod
		p.UnsupportedMedia = true
		return nil, p
	}

	// 3. Produces filter: compute best q per candidate.
	type scored struct {
		h          *Handler
		q          float64
		consumesSp int
		producesSp int
	}
	var candidates []scored
	for _, h := range byConsumes {
		best := -1.0
		for _, a := range accept {
			if !producesCompatible(h.Produces, a.mt) {
				continue
			}
			if a.q == 0 {
				// An explicit q=0 on a matching range eliminates the
				// candidate outright (spec.md §4.4.3), even if another
				// range would otherwise match with q>0. Neither the
				// order nor the specificity of the ranges matters: a
				// q=0 `*/*` also eliminates a candidate that a
				// `text/plain` range accepts with q>0.
				best = -1
				break
			}
			if a.q > best {
				best = a.q
			}
		}
		if best > 0 {
			candidates = append(candidates, scored{
				h: h, q: best,
				consumesSp: specificity(h.Consumes),
				producesSp: specificity(h.Produces),
			})
		}
	}
	if len(candidates) == 0 {
		p := newProblem(KindNoHandlerResolved, "no handler produces an acceptable media type")
		p.Candidates = byConsumes
		p.UnsupportedMedia = false
		return nil, p
	}

	// 4. Ordering: (q desc, consumes specificity desc, produces specificity desc).
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.q != b.q {
			return a.q > b.q
		}
		if a.consumesSp != b.consumesSp {
			return a.consumesSp > b.consumesSp
		}
		return a.producesSp > b.producesSp
	})

	// A tie on (q, consumesSp, producesSp) is broken deterministically
	// by registration order: sort.SliceStable never reorders equally
	// scored candidates, so candidates[0] is always the earliest
	// registered of the tied set. This is what makes spec.md §8
	// scenario 5 deterministic ("no Accept selects the plain one"
	// when /g registers text/plain before application/json) rather
	// than ambiguous. AmbiguousHandler is reserved for a request whose
	// Accept explicitly lists more than one media-range that both
	// resolve to the same best q — i.e. the client, not the server's
	// registration order, is the source of the tie.
	best := candidates[0]
	if len(candidates) > 1 && len(accept) > 1 {
		second := candidates[1]
		if best.q == second.q && best.consumesSp == second.consumesSp && best.producesSp == second.producesSp {
			p := newProblem(KindAmbiguousHandler, "multiple handlers tie for best match")
			for _, c := range candidates {
				if c.q == best.q && c.consumesSp == best.consumesSp && c.producesSp == best.producesSp {
					p.Candidates = append(p.Candidates, c.h)
				}
			}
			return nil, p
		}
	}
	return best.h, nil
}

func (p *Problem) withMethods(methods []string) *Problem {
	p.Methods = methods
	return p
}
