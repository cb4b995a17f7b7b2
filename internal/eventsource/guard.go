package eventsource

import (
	"encoding/json"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

// Guard is a compiled boolean expression evaluated against an event's
// payload before a custom source emits it. It gives webhook and
// programmatic sources an expressive pre-filter ("event.data.amount > 100")
// on top of the declarative Filter.
type Guard struct {
	source  string
	program *vm.Program
}

// CompileGuard compiles an expr-lang expression. The expression sees a
// single `event` variable holding the decoded payload object.
func CompileGuard(expression string) (*Guard, error) {
	program, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, eventmodel.Wrap(err, eventmodel.KindInvalidParams, "failed to compile guard expression")
	}
	return &Guard{source: expression, program: program}, nil
}

// Allow reports whether the event passes the guard. Evaluation errors
// (missing fields, type mismatches) reject the event rather than failing
// the source.
func (g *Guard) Allow(e *eventmodel.Event) (bool, error) {
	if g == nil {
		return true, nil
	}

	var payload map[string]interface{}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return false, errors.Wrap(err, "decode event payload")
		}
	}

	result, err := expr.Run(g.program, map[string]interface{}{"event": payload})
	if err != nil {
		return false, nil
	}
	pass, ok := result.(bool)
	return ok && pass, nil
}
