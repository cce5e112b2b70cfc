package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notFoundMessage = "Todo not found"

// ValidationResponse is the 400 body.
type ValidationResponse struct {
	Errors []FieldError `json:"errors"`
}

// MessageResponse is the 404 and 500 body.
type MessageResponse struct {
	Message string `json:"message" example:"Todo not found"`
}

type todoAPI struct {
	store TodoStore
}

// bindPayload decodes the body. An empty body is an empty object.
func bindPayload(c *gin.Context) (TodoPayload, []FieldError) {
	var payload TodoPayload
	err := c.ShouldBindBodyWith(&payload, binding.JSON)
	if errors.Is(err, io.EOF) {
		return payload, nil
	}
	if err == nil {
		if body, ok := c.Get(gin.BodyBytesKey); ok && hasTrailingData(body.([]byte)) {
			return payload, []FieldError{{Field: "body", Message: "unexpected data after JSON value"}}
		}
		return payload, nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return payload, []FieldError{{Field: typeErr.Field, Message: "Invalid value"}}
	}
	return payload, []FieldError{{Field: "body", Message: err.Error()}}
}

// hasTrailingData reports whether anything but whitespace follows the first JSON value.
func hasTrailingData(body []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return false
	}
	_, err := dec.Token()
	return !errors.Is(err, io.EOF)
}

func (api *todoAPI) fail(c *gin.Context, operation string, err error) {
	observe(operation, outcomeOf(err))
	if errors.Is(err, ErrTodoNotFound) {
		c.JSON(http.StatusNotFound, MessageResponse{Message: notFoundMessage})
		return
	}
	requestLog(c).WithError(err).WithField("operation", operation).Error("Todo store call failed")
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
	c.JSON(http.StatusInternalServerError, MessageResponse{Message: err.Error()})
}

func (api *todoAPI) invalid(c *gin.Context, operation string, violations []FieldError) {
	observe(operation, outcomeInvalid)
	c.JSON(http.StatusBadRequest, ValidationResponse{Errors: violations})
}

// CreateTodo godoc
// @Summary Create a todo
// @Description Validates the body and stores a new todo
// @Tags todos
// @Accept json
// @Produce json
// @Param todo body TodoPayload true "Todo to create"
// @Success 201 {object} Todo
// @Failure 400 {object} ValidationResponse
// @Failure 500 {object} MessageResponse
// @Router /todos [post]
func (api *todoAPI) handleCreateTodo(c *gin.Context) {
	payload, violations := bindPayload(c)
	if violations == nil {
		violations = ValidateCreate(payload)
	}
	if len(violations) > 0 {
		api.invalid(c, "create", violations)
		return
	}

	todo := payload.NewTodo()
	if err := api.store.Create(c.Request.Context(), &todo); err != nil {
		api.fail(c, "create", err)
		return
	}
	observe("create", outcomeOK)
	c.JSON(http.StatusCreated, todo)
}

// ListTodos godoc
// @Summary List todos
// @Tags todos
// @Produce json
// @Success 200 {array} Todo
// @Failure 500 {object} MessageResponse
// @Router /todos [get]
func (api *todoAPI) handleListTodos(c *gin.Context) {
	todos, err := api.store.List(c.Request.Context())
	if err != nil {
		api.fail(c, "list", err)
		return
	}
	if todos == nil {
		todos = []Todo{}
	}
	observe("list", outcomeOK)
	c.JSON(http.StatusOK, todos)
}

// GetTodo godoc
// @Summary Get a todo
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} Todo
// @Failure 404 {object} MessageResponse
// @Failure 500 {object} MessageResponse
// @Router /todos/{id} [get]
func (api *todoAPI) handleGetTodo(c *gin.Context) {
	todo, err := api.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.fail(c, "get", err)
		return
	}
	observe("get", outcomeOK)
	c.JSON(http.StatusOK, todo)
}

// UpdateTodo godoc
// @Summary Update a todo
// @Description Sets the fields present in the body; absent fields keep their value
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param todo body TodoPayload true "Fields to change"
// @Success 200 {object} Todo
// @Failure 400 {object} ValidationResponse
// @Failure 404 {object} MessageResponse
// @Failure 500 {object} MessageResponse
// @Router /todos/{id} [put]
func (api *todoAPI) handleUpdateTodo(c *gin.Context) {
	id := c.Param("id")
	// a malformed id can never match, whatever the body says
	if !primitive.IsValidObjectID(id) {
		api.fail(c, "update", ErrTodoNotFound)
		return
	}

	payload, violations := bindPayload(c)
	if violations == nil {
		violations = ValidateUpdate(payload)
	}
	if len(violations) > 0 {
		api.invalid(c, "update", violations)
		return
	}

	todo, err := api.store.Update(c.Request.Context(), id, payload.Patch())
	if err != nil {
		api.fail(c, "update", err)
		return
	}
	observe("update", outcomeOK)
	c.JSON(http.StatusOK, todo)
}

// DeleteTodo godoc
// @Summary Delete a todo
// @Tags todos
// @Param id path string true "Todo ID"
// @Success 204
// @Failure 404 {object} MessageResponse
// @Failure 500 {object} MessageResponse
// @Router /todos/{id} [delete]
func (api *todoAPI) handleDeleteTodo(c *gin.Context) {
	if err := api.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		api.fail(c, "delete", err)
		return
	}
	observe("delete", outcomeOK)
	c.Status(http.StatusNoContent)
}
