package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcomeOf(t *testing.T) {
	tests := map[error]string{
		nil:                                    outcomeOK,
		ErrTodoNotFound:                        outcomeNotFound,
		fmt.Errorf("get: %w", ErrTodoNotFound): outcomeNotFound,
		errors.New("connection reset"):         outcomeError,
	}
	for err, want := range tests {
		if got := outcomeOf(err); got != want {
			t.Errorf("outcomeOf(%v): expected %s, got %s", err, want, got)
		}
	}
}

func TestHandlersCountOperations(t *testing.T) {
	router := NewRouter(newMemStore(), RouterOptions{})
	created := todoOperations.WithLabelValues("create", outcomeOK)
	invalid := todoOperations.WithLabelValues("create", outcomeInvalid)
	okBefore, invalidBefore := testutil.ToFloat64(created), testutil.ToFloat64(invalid)

	createTodo(t, router, `{"title":"Buy milk"}`)
	do(t, router, http.MethodPost, "/api/todos", `{"title":"ab"}`)

	if got := testutil.ToFloat64(created) - okBefore; got != 1 {
		t.Errorf("expected one ok create, got %v", got)
	}
	if got := testutil.ToFloat64(invalid) - invalidBefore; got != 1 {
		t.Errorf("expected one invalid create, got %v", got)
	}
}
