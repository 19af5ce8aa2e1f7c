// Package behavior implements the hierarchical behavior layer: a
// Controller owns a named map of States, exactly one of which is active at
// a time; states issue tasks or direct chassis commands against a Robot.
// MatchController is the port of the original source's TestController, the
// example controller demonstrating the pattern with the full set of match
// behaviors (watch-ball, fetch-ball, aim, and friends).
package behavior

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/cemot/soccervision/protocol"
	"github.com/cemot/soccervision/vision"
)

// State is one named behavior: OnEnter/OnExit bracket activation, Step runs
// every controller tick while the state is current.
type State interface {
	OnEnter()
	OnExit()
	Step(dt float64, results vision.Results, totalDuration, stateDuration float64)
}

// Controller owns a keyed map of sub-states, an active state pointer, and a
// name. Switching states calls OnExit on the old state, OnEnter on the new
// one, and resets currentStateDuration.
type Controller struct {
	Name string

	states map[string]State

	currentStateName     string
	currentState          State
	currentStateDuration float64
	totalDuration         float64
}

// NewController builds an empty, named Controller. Register states with
// Register before the first Step.
func NewController(name string) *Controller {
	return &Controller{Name: name, states: make(map[string]State)}
}

// Register adds a named state. Registering under a name already in use
// replaces the prior state.
func (c *Controller) Register(name string, s State) {
	c.states[name] = s
}

// SetState switches the active state, running OnExit/OnEnter and resetting
// currentStateDuration. Returns false if name is not registered, leaving
// the current state unchanged.
func (c *Controller) SetState(name string) bool {
	next, ok := c.states[name]
	if !ok {
		return false
	}
	if c.currentState != nil {
		c.currentState.OnExit()
	}
	c.currentStateName = name
	c.currentState = next
	c.currentStateDuration = 0
	next.OnEnter()
	return true
}

// CurrentStateName reports the name of the active state, or "" before
// first activation.
func (c *Controller) CurrentStateName() string {
	return c.currentStateName
}

// Step advances the active state by dt, tracking per-state and total
// elapsed time. A no-op before any state has been activated.
func (c *Controller) Step(dt float64, results vision.Results) {
	if c.currentState == nil {
		return
	}
	c.currentStateDuration += dt
	c.totalDuration += dt
	c.currentState.Step(dt, results, c.totalDuration, c.currentStateDuration)
}

// HandleCommand applies the generic state-switching commands every
// Controller understands: run-<name> switches to <name>; reset and
// toggle-side reset both duration counters and re-enter the current state.
// Concrete controllers with additional commands should check their own
// vocabulary first and fall back to this method.
func (c *Controller) HandleCommand(cmd protocol.Command) bool {
	if strings.HasPrefix(cmd.Name, "run-") {
		return c.SetState(strings.TrimPrefix(cmd.Name, "run-"))
	}
	if cmd.Name == "reset" || cmd.Name == "toggle-side" {
		c.totalDuration = 0
		c.currentStateDuration = 0
		if c.currentStateName != "" {
			c.SetState(c.currentStateName)
		}
		return true
	}
	return false
}

// debugValues accumulates ad hoc key/value pairs for introspection,
// cleared every time renderJSON renders them — mirroring the original
// source's dbg()/getJSON() pair.
type debugValues struct {
	values map[string]interface{}
}

func newDebugValues() *debugValues {
	return &debugValues{values: make(map[string]interface{})}
}

func (d *debugValues) set(key string, val interface{}) {
	d.values[key] = val
}

// renderJSON builds the introspection payload and clears the accumulated
// values, matching getJSON()'s messages.clear() side effect.
func (d *debugValues) renderJSON(extra map[string]interface{}) (string, error) {
	payload := make(map[string]interface{}, len(d.values)+len(extra))
	for k, v := range d.values {
		payload[k] = v
	}
	for k, v := range extra {
		payload[k] = v
	}
	d.values = make(map[string]interface{})

	out, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshaling controller debug JSON")
	}
	return string(out), nil
}
