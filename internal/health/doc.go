// Package health provides the readiness probe served on the admin port.
//
// Components register named checks; the probe runs all of them and answers
// 200 while none is unhealthy and 503 otherwise.
//
//	checker := health.NewChecker(version)
//	checker.RegisterCheck("diagnostics", func(ctx context.Context) health.Check {
//	    return health.Check{Status: health.StatusHealthy}
//	})
//	catalog.Add(health.PatternReady, checker.Handler())
package health
