// Package executor provides a small, dedicated worker pool used as a
// private execution context.
//
// A Pool owns a fixed set of worker goroutines fed from its own queue. With
// LockOSThread set, every worker is wired to its own OS thread for its
// whole life, so work submitted to the pool never waits behind another
// component's goroutines for a thread slot. Workers are plain goroutines
// and never keep the process alive.
//
//	pool := executor.New(executor.Config{Name: "diagnostics", Workers: 1, LockOSThread: true}, logger)
//	if err := pool.Start(); err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err := pool.Do(ctx, func() { ... })
package executor
