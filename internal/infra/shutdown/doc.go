// Package shutdown provides graceful shutdown for WirePool.
//
// A Coordinator collects named releasers during startup and runs them
// in reverse order once SIGINT, SIGTERM or Trigger arrives, all under
// a single grace deadline.
//
// Usage:
//
//	sd := shutdown.New(30*time.Second, log)
//	sd.Register("http server", srv.Shutdown)
//	err := sd.Wait() // blocks until a stop signal, then releases
package shutdown
