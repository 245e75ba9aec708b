// Package effects provides the core of an algebraic-effect runtime for Go.
//
// Business logic is written as Programs that describe side effects as
// immutable data and never perform I/O themselves. A Runner drives each
// Program and dispatches every described effect to an Interpreter, which
// performs the real work against an external backend.
//
// # What is an Effect?
//
// An effect is a plain value naming an action and its inputs:
// GetUserByID{UserID: id}, PublishMessage{Topic: "t", Payload: b}. Effects
// carry no behaviour; whoever interprets them decides what happens.
//
// # How does it work?
//
// A Program receives a Yield function. Yielding an effect suspends the
// Program until the Runner has interpreted the effect, then resumes it with
// the outcome. Run implements this as a channel-mediated continuation loop:
// the Program runs on its own goroutine and parks on a one-shot resume
// channel at every yield.
//
//	prog := func(yield effects.Yield) string {
//	    switch found := yield(database.GetUserByID{UserID: id}).(type) {
//	    case database.UserFound:
//	        return found.User.Name
//	    case database.UserNotFound:
//	        return "anonymous"
//	    default:
//	        panic("unreachable")
//	    }
//	}
//	res := effects.Run(ctx, prog, interpreter)
//
// # Failure model
//
// Expected absence (not found, cache miss, consume timeout) is an ordinary
// outcome value. Infrastructure failure is an Err(InterpreterError), which
// stops the Program at once. Nothing is retried automatically; the
// retryable flag on each error is advice for the caller.
//
// Subpackages hold one effect family each, together with the interpreter
// that serves it; package composite chains them, package instrument
// decorates any interpreter with metrics.
package effects
