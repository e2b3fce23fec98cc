package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/tableserve-backend/internal/orderstatus"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
)

// Inbound commands.
const (
	CommandJoinRoom          = "joinRoom"
	CommandUpdateOrderStatus = "updateOrderStatus"
	CommandCancelOrder       = "cancelOrder"
)

// Replies sent only to the issuing connection.
const (
	EventError  = "error"
	EventJoined = "joined"
)

type joinRoomData struct {
	Room string `json:"room"`
}

type updateOrderStatusData struct {
	OrderNo string            `json:"orderNo"`
	Status  enums.OrderStatus `json:"status"`
	Note    string            `json:"note"`
}

type cancelOrderData struct {
	OrderNo string `json:"orderNo"`
	Reason  string `json:"reason"`
}

type errorReply struct {
	Command string `json:"command,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

type commandRouter struct {
	hub      *Hub
	statuses orderstatus.Service
}

func (r *commandRouter) dispatch(ctx context.Context, c *Client, frame Frame) {
	switch frame.Event {
	case CommandJoinRoom:
		var data joinRoomData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.reply(EventError, errorReply{Command: frame.Event, Message: "invalid payload"})
			return
		}
		r.joinRoom(ctx, c, strings.TrimSpace(data.Room))
	case CommandUpdateOrderStatus:
		var data updateOrderStatusData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.reply(EventError, errorReply{Command: frame.Event, Message: "invalid payload"})
			return
		}
		r.updateOrderStatus(ctx, c, data)
	case CommandCancelOrder:
		var data cancelOrderData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.reply(EventError, errorReply{Command: frame.Event, Message: "invalid payload"})
			return
		}
		r.cancelOrder(ctx, c, data)
	default:
		c.reply(EventError, errorReply{Command: frame.Event, Message: "unknown command"})
	}
}

// joinRoom ignores rooms the identity is not entitled to.
func (r *commandRouter) joinRoom(ctx context.Context, c *Client, room string) {
	if room == "" || !canJoin(c.identity, room) {
		logCtx := r.hub.logg.WithFields(ctx, map[string]any{
			"room":       room,
			"subject_id": c.identity.SubjectID.String(),
		})
		r.hub.logg.Warn(logCtx, "realtime.join.refused")
		return
	}
	if r.hub.join(c, room) {
		c.reply(EventJoined, joinRoomData{Room: room})
	}
}

func (r *commandRouter) updateOrderStatus(ctx context.Context, c *Client, data updateOrderStatusData) {
	// same gate as the restaurant room: a User token with a non-staff role is refused
	if c.identity.SubjectType != enums.SubjectUser || !isStaffRole(c.identity.Role) || c.identity.RestaurantID == nil {
		c.reply(EventError, errorReply{Command: CommandUpdateOrderStatus, Code: string(pkgerrors.CodeForbidden), Message: "staff access required"})
		return
	}
	if r.statuses == nil {
		c.reply(EventError, errorReply{Command: CommandUpdateOrderStatus, Message: "order updates unavailable"})
		return
	}
	actorID := c.identity.SubjectID
	actorType := c.identity.SubjectType
	_, err := r.statuses.Transition(ctx, orderstatus.TransitionInput{
		Order:        orderstatus.OrderRef{OrderNo: strings.TrimSpace(data.OrderNo)},
		To:           data.Status,
		RestaurantID: c.identity.RestaurantID,
		ActorID:      &actorID,
		ActorType:    &actorType,
		Actor:        c.identity.ActorRef(),
		Note:         strings.TrimSpace(data.Note),
	})
	if err != nil {
		c.reply(EventError, commandError(CommandUpdateOrderStatus, err))
	}
}

func (r *commandRouter) cancelOrder(ctx context.Context, c *Client, data cancelOrderData) {
	if !c.identity.IsCustomer() {
		c.reply(EventError, errorReply{Command: CommandCancelOrder, Code: string(pkgerrors.CodeForbidden), Message: "customer access required"})
		return
	}
	if r.statuses == nil {
		c.reply(EventError, errorReply{Command: CommandCancelOrder, Message: "order updates unavailable"})
		return
	}
	_, err := r.statuses.CustomerCancel(ctx, orderstatus.CancelInput{
		Order:      orderstatus.OrderRef{OrderNo: strings.TrimSpace(data.OrderNo)},
		CustomerID: c.identity.SubjectID,
		Reason:     data.Reason,
		Actor:      c.identity.ActorRef(),
	})
	if err != nil {
		c.reply(EventError, commandError(CommandCancelOrder, err))
	}
}

func commandError(command string, err error) errorReply {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() == pkgerrors.CodeInternal || typed.Code() == pkgerrors.CodeDependency {
		return errorReply{Command: command, Code: string(pkgerrors.CodeInternal), Message: "command failed"}
	}
	return errorReply{
		Command: command,
		Code:    string(typed.Code()),
		Reason:  string(typed.Reason()),
		Message: typed.Message(),
	}
}
