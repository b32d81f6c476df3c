// Package shutdown runs cleanup hooks when the process receives SIGINT or
// SIGTERM.
//
// Usage:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("session", func(ctx context.Context) error {
//		sess.Close()
//		return nil
//	})
//	err := h.Wait(ctx)
package shutdown
