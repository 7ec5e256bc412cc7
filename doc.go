/*
Package yawn is a single-host static-file HTTP/1.1 server built around a
one-shot epoll reactor, a bounded worker pool, and a memory-mapped file
path with gather-write output.

Modules

  - internal/reactor: epoll registration, level/edge-triggered and
    one-shot interest sets
  - internal/netutil: listening socket setup, accept loop
  - internal/buffer: growable read/write byte buffer
  - internal/httpparse: incremental HTTP/1.1 request parsing
  - internal/httpbuild: static file resolution, conditional GET,
    response composition
  - internal/fileserve: path stat/classify and mmap
  - internal/connection: per-fd read/parse/build/write state machine
  - internal/timer: min-heap of idle-connection deadlines
  - internal/workerpool: bounded task pool draining a shared queue
  - internal/bqueue: bounded blocking FIFO shared by the worker pool
    and the async logger
  - internal/logx: async, level-gated, rotating logger
  - internal/config: key=value configuration file parsing
  - internal/authstore: pluggable credential store for the
    login/register static-page rewrite
  - internal/server: wires the above into the accept/dispatch loop
  - cmd/yawn: process entry point

*/
package yawn
