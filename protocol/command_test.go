package protocol_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/cemot/soccervision/logging"
	"github.com/cemot/soccervision/protocol"
)

func TestIsValid(t *testing.T) {
	test.That(t, protocol.IsValid("stop"), test.ShouldBeTrue)
	test.That(t, protocol.IsValid("target-vector:1:0:0"), test.ShouldBeTrue)
	test.That(t, protocol.IsValid(""), test.ShouldBeFalse)
	test.That(t, protocol.IsValid(":::"), test.ShouldBeFalse)
}

func TestParse(t *testing.T) {
	cmd := protocol.Parse("target-vector:1:0:0.5")
	test.That(t, cmd.Name, test.ShouldEqual, "target-vector")
	test.That(t, cmd.Parameters, test.ShouldResemble, []string{"1", "0", "0.5"})
}

func TestParseNoParameters(t *testing.T) {
	cmd := protocol.Parse("stop")
	test.That(t, cmd.Name, test.ShouldEqual, "stop")
	test.That(t, len(cmd.Parameters), test.ShouldEqual, 0)
}

func TestCommandStringRoundTrip(t *testing.T) {
	cmd := protocol.Command{Name: "kick", Parameters: []string{"200"}}
	test.That(t, cmd.String(), test.ShouldEqual, "kick:200")

	bare := protocol.Command{Name: "stop"}
	test.That(t, bare.String(), test.ShouldEqual, "stop")
}

type fakeDispatcher struct {
	handledCommand bool
	handledRequest bool
	setController  string
}

func (f *fakeDispatcher) HandleCommand(cmd protocol.Command) bool {
	return f.handledCommand
}

func (f *fakeDispatcher) HandleRequest(text string) bool {
	return f.handledRequest
}

func (f *fakeDispatcher) SetController(name string) bool {
	f.setController = name
	return true
}

func TestDispatchOrderPrefersHandleCommand(t *testing.T) {
	logger := logging.NewTestLogger(t)
	d := &fakeDispatcher{handledCommand: true}
	protocol.Dispatch(logger, d, protocol.Command{Name: "target-vector"})
	test.That(t, d.setController, test.ShouldEqual, "")
}

func TestDispatchFallsThroughToSetController(t *testing.T) {
	logger := logging.NewTestLogger(t)
	d := &fakeDispatcher{}
	protocol.Dispatch(logger, d, protocol.Command{Name: "set-controller", Parameters: []string{"match"}})
	test.That(t, d.setController, test.ShouldEqual, "match")
}

func TestQueueFIFOOrder(t *testing.T) {
	var q protocol.Queue
	q.Push(protocol.Command{Name: "first"})
	q.Push(protocol.Command{Name: "second"})

	drained := q.DrainAll()
	test.That(t, len(drained), test.ShouldEqual, 2)
	test.That(t, drained[0].Name, test.ShouldEqual, "first")
	test.That(t, drained[1].Name, test.ShouldEqual, "second")
	test.That(t, q.Len(), test.ShouldEqual, 0)
}

func TestQueueDequeue(t *testing.T) {
	var q protocol.Queue
	q.Push(protocol.Command{Name: "a"})
	q.Push(protocol.Command{Name: "b"})

	cmd, ok := q.Dequeue()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cmd.Name, test.ShouldEqual, "a")
	test.That(t, q.Len(), test.ShouldEqual, 1)
}
