package main

import (
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/app"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/handlers"
)

// healthCheckers checks every backend the container connected to. Only
// Postgres is required; the API degrades without the others.
func healthCheckers(c *app.Container) []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{Component: "postgres", Fn: c.DB.HealthCheck},
	}
	if c.Redis != nil {
		checkers = append(checkers, handlers.CheckerFunc{Component: "redis", Fn: c.Redis.Ping, Optional: true})
	}
	if c.Storage != nil {
		checkers = append(checkers, handlers.CheckerFunc{Component: "minio", Fn: c.Storage.HealthCheck, Optional: true})
	}
	if c.Producer != nil {
		checkers = append(checkers, handlers.CheckerFunc{Component: "kafka", Fn: c.Producer.HealthCheck, Optional: true})
	}
	return checkers
}
