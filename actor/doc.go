/*
Package actor provides a lightweight actor runtime on top of [pool.Pool].

Actors deal with one message at a time, so message handlers need no locking
or synchronization of their own. Parallelism comes from running many actors
on the workers of a shared pool, bound to the actors through a named [Group].

Four kinds of actor cover different dispatch needs:

  - [Group.Spawn] runs a body function that receives messages explicitly,
    with optional timeouts, from anywhere in its own control flow.
  - [Group.SpawnDynamic] routes each message to the handler registered for
    its runtime type, with an optional catch-all; the handler table can be
    swapped at runtime with [Context.Become].
  - [SpawnTyped] binds an actor to exactly one message type, checked at
    compile time on every send.
  - [Group.SpawnReactive] replies to every message with the return value of
    a supplied function.

Every actor has an unbounded mailbox that only it consumes; producers never
block on a send. Message order is preserved per sender. A fair actor yields
its worker back to the pool after each message, while a non-fair actor (the
default) drains its mailbox before yielding, trading pool-wide
responsiveness for single-actor throughput.

Although the package focuses on asynchronous sends, [Ref.SendAndWait]
supports a synchronous call: the message carries a reply slot that the
receiving handler fills with [Context.Reply].
*/
package actor
