// Package chanx bridges native Go channels and context cancellation.
//
// Native channels block forever when the other side goes away. The helpers
// here always select on a [context.Context] as well, so a goroutine moving
// values between a native channel and a chanflow reader can be stopped:
//
//   - [Send] and [Recv]: single context-aware send and receive.
//   - [Forward]: receives until the channel is closed, handing every value
//     to a callback.
package chanx
