// Package rhythm decides when the bot's bells should strike.
//
// Two layers cooperate:
//
//   - [Regression] is the base predictor. It turns a (row, place) pair into a
//     predicted instant on an idealized timeline, refining its estimate of
//     the ringing speed from the strikes it is told about.
//   - [UserSync] wraps a predictor and keeps the bot in step with the human
//     ringers. It records every strike, keeps a running delay between the
//     idealized timeline and the humans' real clock, and blocks the
//     scheduling loop until either the predicted instant arrives or the
//     awaited human has already rung.
//
// # Concurrency
//
// A feed goroutine calls [UserSync.RecordStrike] for every strike the tower
// reports while the scheduling goroutine calls [UserSync.RegisterExpectation]
// and then one of the wait methods, one bell at a time. Only the scheduler
// blocks. All shared state sits behind one mutex; a waiter is released by
// closing a channel owned by its wait, never by polling.
//
// # Timelines
//
// Instants passed to the predictor are idealized: a strike at real instant R
// is forwarded as R minus the delay in effect before that strike. The wait
// treats a due instant T as arrived once now minus the current delay reaches T.
package rhythm
