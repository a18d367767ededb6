package engine

// Gates combine memoized condition outcomes from upstream conditionals.
// Upstream nodes that never executed or never produced a condition simply
// do not appear in incoming.

// andGate is true when every incoming outcome is true. No inputs means
// false: an and-gate with nothing feeding it must not fire orders.
func andGate(incoming []bool) Result {
	met := len(incoming) > 0
	for _, v := range incoming {
		if !v {
			met = false
			break
		}
	}
	return gateResult(met, incoming)
}

// orGate is true when any incoming outcome is true
func orGate(incoming []bool) Result {
	met := false
	for _, v := range incoming {
		if v {
			met = true
			break
		}
	}
	return gateResult(met, incoming)
}

// notGate inverts its first input. With no inputs it is vacuously true.
func notGate(incoming []bool) Result {
	met := true
	if len(incoming) > 0 {
		met = !incoming[0]
	}
	return gateResult(met, incoming)
}

func gateResult(met bool, incoming []bool) Result {
	return Result{"status": "success", "condition": met, "inputs": len(incoming)}
}
