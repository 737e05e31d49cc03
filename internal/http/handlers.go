package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/board"
	"github.com/sujalbistaa/guestboard/internal/events"
	"github.com/sujalbistaa/guestboard/internal/store"
	"github.com/sujalbistaa/guestboard/internal/stream"
)

// ActionInput is the form posted to the message board.
type ActionInput struct {
	Intent  string `form:"intent"`
	ID      string `form:"id"`
	Name    string `form:"name"`
	Message string `form:"message"`
}

// FormState is the outcome of a form submission.
type FormState struct {
	State string  `json:"state"` // "success" or "error"
	Error *string `json:"error"`
}

type FormStateData struct {
	Form FormState `json:"form"`
}

func toFormStateData(errorMessage string) FormStateData {
	if errorMessage == "" {
		return FormStateData{Form: FormState{State: "success"}}
	}
	return FormStateData{Form: FormState{State: "error", Error: &errorMessage}}
}

// Kinds forwarded to push clients.
var streamKinds = []events.Kind{
	events.RecordCreated,
	events.RecordLikesChanged,
	events.RecordDeleted,
}

// --- Handlers ---
type Env struct {
	Board    *board.Service
	Bus      *events.Bus
	Streams  *stream.Endpoint
	Upgrader websocket.Upgrader
	Log      *zap.Logger
}

func (e *Env) setup() stream.SetupFunc {
	return stream.BusSetup(e.Bus, e.Log, streamKinds...)
}

// GetEntries returns the snapshot a client replaces its view with.
func (e *Env) GetEntries(c *gin.Context) {
	records, err := e.Board.List(c.Request.Context())
	if err != nil {
		e.Log.Error("fetch records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": records})
}

// PostAction handles the intent form: new, upVote or downVote.
func (e *Env) PostAction(c *gin.Context) {
	var input ActionInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, toFormStateData("Invalid input: "+err.Error()))
		return
	}

	_, err := e.Board.Action(c.Request.Context(), input.Intent, map[string]string{
		"id":      input.ID,
		"name":    input.Name,
		"message": input.Message,
	})
	if err != nil {
		status, msg := actionError(err)
		c.JSON(status, toFormStateData(msg))
		return
	}
	c.JSON(http.StatusOK, toFormStateData(""))
}

func actionError(err error) (int, string) {
	var verr *board.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Msg
	case errors.Is(err, board.ErrUnknownIntent):
		return http.StatusInternalServerError, "Ups, something went wrong! Unknown intent."
	case errors.Is(err, store.ErrNotFound):
		return http.StatusInternalServerError, "Record not found"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (e *Env) DeleteRecord(c *gin.Context) {
	_, err := e.Board.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete record"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted"})
}

func (e *Env) StreamSSE(c *gin.Context) {
	e.Streams.ServeSSE(c.Writer, c.Request, e.setup())
}

func (e *Env) StreamWS(c *gin.Context) {
	e.Streams.ServeWS(&e.Upgrader, c.Writer, c.Request, e.setup())
}
