package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var todoOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "todo_operations_total",
	Help: "Todo API operations by outcome.",
}, []string{"operation", "outcome"})

const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

func observe(operation, outcome string) {
	todoOperations.WithLabelValues(operation, outcome).Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrTodoNotFound):
		return outcomeNotFound
	}
	return outcomeError
}
