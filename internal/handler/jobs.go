package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/service"
	"github.com/iliyamo/neighborhood-lottery/internal/ws"
)

// JobHandler exposes bulk job progress, by polling or over a websocket.
type JobHandler struct {
	Jobs *service.Jobs
	Hub  *ws.Hub
}

func NewJobHandler(j *service.Jobs, h *ws.Hub) *JobHandler {
	return &JobHandler{Jobs: j, Hub: h}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Current: GET /v1/admin/jobs/current.  Answers {"job": null} when idle.
func (h *JobHandler) Current(c echo.Context) error {
	if job := h.Jobs.Running(); job != nil {
		return c.JSON(http.StatusOK, echo.Map{"job": job.Progress()})
	}
	return c.JSON(http.StatusOK, echo.Map{"job": nil})
}

// Get: GET /v1/admin/jobs/:id
func (h *JobHandler) Get(c echo.Context) error {
	job, ok := h.Jobs.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, echo.Map{"job": job.Progress()})
}

// Stream: GET /v1/admin/jobs/:id/ws.  The current progress is sent on
// connect, then every update until the job finishes.
func (h *JobHandler) Stream(c echo.Context) error {
	job, ok := h.Jobs.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return nil
	}

	topic := job.ID()
	if err := h.Hub.Add(topic, conn, job.Progress()); err != nil {
		conn.Close()
		return nil
	}
	defer h.Hub.Remove(topic, conn)

	// The job may have sent its final update between the snapshot and Add.
	go func() {
		<-job.Done()
		h.Hub.Broadcast(topic, job.Progress())
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
