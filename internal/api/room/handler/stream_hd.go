package roomHandler

import (
	"RoomDetection/internal/api/room"
	contextPkg "RoomDetection/pkg/context"
	"RoomDetection/pkg/handlerUtil"
	"RoomDetection/pkg/log"
	"errors"
	"fmt"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"strconv"
	"time"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
)

func parseStreamThreshold(c *websocket.Conn, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &v, nil
}

func (h *RoomHandler) writeStream(c *websocket.Conn, v interface{}) error {
	if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	if err := c.WriteJSON(v); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}

// handleDetectWebSocket runs detection on every binary frame received and
// answers each with a detection response or an error object. Query
// parameters given on the upgrade request apply to all frames.
func (h *RoomHandler) handleDetectWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	if requestID == "" {
		requestID = "unknown"
	}
	logger := h.log.WithField("request_id", requestID)

	logger.Info("Room detection WebSocket client connected")
	defer logger.Info("Room detection WebSocket client disconnected")

	threshold, err := parseStreamThreshold(c, "threshold")
	if err != nil {
		h.rejectStream(c, logger, err)
		return
	}
	overlap, err := parseStreamThreshold(c, "overlap_threshold")
	if err != nil {
		h.rejectStream(c, logger, err)
		return
	}

	h.streamFrames(c, requestID, threshold, overlap)
}

func (h *RoomHandler) rejectStream(c *websocket.Conn, logger *logrus.Entry, err error) {
	logger.Warnf("Rejecting WebSocket client: %v", err)
	_ = h.writeStream(c, room.StreamError{Error: err.Error()})
}

func (h *RoomHandler) streamFrames(c *websocket.Conn, requestID string, threshold, overlap *float64) {
	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Room detection WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			if err := h.writeStream(c, room.StreamError{Error: "expected a binary image frame"}); err != nil {
				break
			}
			continue
		}

		ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.requestTimeout)
		result, err := h.roomService.DetectRooms(ctx, room.DetectInput{
			Image:            message,
			Threshold:        threshold,
			OverlapThreshold: overlap,
		})
		cancel()

		if err != nil {
			errMsg := "An unexpected error occurred"
			if respErr := handlerUtil.Resolve(err); respErr != nil {
				errMsg = respErr.Error()
			} else if !errors.Is(err, context.Canceled) {
				errMsg = fmt.Sprintf("%s (trace %s)", errMsg, log.ErrorWithTraceID(log.Fields{
					"request_id": requestID,
					"error":      err.Error(),
				}, "Error processing room detection frame"))
			}
			if writeErr := h.writeStream(c, room.StreamError{Error: errMsg}); writeErr != nil {
				h.log.Errorf("Error sending error response: %v", writeErr)
				break
			}
			continue
		}

		if err := h.writeStream(c, result); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}
