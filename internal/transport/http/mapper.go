package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/chatroom-server/internal/core"
	"github.com/vovakirdan/chatroom-server/internal/proto"
)

func badRequest(msg, details string) *core.CoreError {
	return &core.CoreError{Code: core.ErrCodeBadRequest, Message: msg, Details: details}
}

func decodeData(raw json.RawMessage, v any) *core.CoreError {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed data", err.Error())
	}
	return nil
}

func requireID(name string, id proto.ID) *core.CoreError {
	if id <= 0 {
		return badRequest(name+" is required", "")
	}
	return nil
}

func firstError(errs ...*core.CoreError) *core.CoreError {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// inboundToCommand validates an inbound envelope and converts it to a core command.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError) {
	switch inbound.Type {
	case proto.InboundRegisterUser:
		var data proto.RegisterUserData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := requireID("userId", data.UserID); err != nil {
			return nil, err
		}
		return core.NewCommand(&core.RegisterUser{UserID: int64(data.UserID)}), nil

	case proto.InboundJoinChatroom, proto.InboundLeaveChatroom:
		var data proto.RoomData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := requireID("roomId", data.RoomID); err != nil {
			return nil, err
		}
		if inbound.Type == proto.InboundJoinChatroom {
			return core.NewCommand(&core.JoinChatroom{RoomID: int64(data.RoomID), UserID: int64(data.UserID)}), nil
		}
		return core.NewCommand(&core.LeaveChatroom{RoomID: int64(data.RoomID), UserID: int64(data.UserID)}), nil

	case proto.InboundSendMessage:
		var data proto.SendMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := firstError(requireID("senderId", data.SenderID), requireID("roomId", data.RoomID)); err != nil {
			return nil, err
		}
		return core.NewCommand(&core.SendMessage{
			SenderID: int64(data.SenderID),
			RoomID:   int64(data.RoomID),
			Content:  data.Content,
		}), nil

	case proto.InboundSendTyping, proto.InboundStopTyping:
		var data proto.TypingData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := requireID("roomId", data.RoomID); err != nil {
			return nil, err
		}
		if inbound.Type == proto.InboundSendTyping {
			return core.NewCommand(&core.SendTyping{
				SenderID:   int64(data.SenderID),
				RoomID:     int64(data.RoomID),
				SenderName: data.SenderName,
			}), nil
		}
		return core.NewCommand(&core.StopTyping{SenderID: int64(data.SenderID), RoomID: int64(data.RoomID)}), nil

	case proto.InboundMarkMessageAsRead:
		var data proto.MarkReadData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		if err := firstError(requireID("messageId", data.MessageID), requireID("roomId", data.RoomID)); err != nil {
			return nil, err
		}
		return core.NewCommand(&core.MarkMessageAsRead{
			MessageID: int64(data.MessageID),
			UserID:    int64(data.UserID),
			RoomID:    int64(data.RoomID),
		}), nil

	case proto.InboundPing:
		return core.NewCommand(&core.Ping{}), nil

	default:
		return nil, &core.CoreError{Code: core.ErrCodeUnknownType, Message: "unknown message type", Details: inbound.Type}
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func receiveMessage(m *core.ReceiveMessage) proto.EventReceiveMessage {
	return proto.EventReceiveMessage{
		MessageID:  m.MessageID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		RoomID:     m.RoomID,
		Content:    m.Content,
		CreatedAt:  timestamp(m.CreatedAt),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}

	switch p := event.Payload.(type) {
	case *core.Connected:
		out.Data = proto.EventConnected{ConnectionID: p.ConnectionID, ConnectedAt: timestamp(p.ConnectedAt)}
	case *core.JoinConfirmation:
		out.Data = proto.EventJoinConfirmation{RoomID: p.RoomID, JoinedAt: timestamp(p.JoinedAt)}
	case *core.LeaveConfirmation:
		out.Data = proto.EventLeaveConfirmation{RoomID: p.RoomID, LeftAt: timestamp(p.LeftAt)}
	case *core.UserJoinedChatroom:
		out.Data = proto.EventUserJoinedChatroom{
			UserID:   p.UserID,
			Username: p.Username,
			RoomID:   p.RoomID,
			JoinedAt: timestamp(p.JoinedAt),
		}
	case *core.UserLeftChatroom:
		out.Data = proto.EventUserLeftChatroom{
			UserID: p.UserID,
			RoomID: p.RoomID,
			LeftAt: timestamp(p.LeftAt),
			Reason: p.Reason,
		}
	case *core.ReceiveMessage:
		out.Data = receiveMessage(p)
	case *core.MessageSent:
		out.Data = proto.EventMessageSent{MessageID: p.MessageID, Status: p.Status}
	case *core.UserTyping:
		out.Data = proto.EventUserTyping{
			SenderID:   p.SenderID,
			RoomID:     p.RoomID,
			SenderName: p.SenderName,
			Timestamp:  timestamp(p.Timestamp),
		}
	case *core.UserStoppedTyping:
		out.Data = proto.EventUserStoppedTyping{SenderID: p.SenderID, RoomID: p.RoomID, Timestamp: timestamp(p.Timestamp)}
	case *core.MessageRead:
		out.Data = proto.EventMessageRead{
			MessageID: p.MessageID,
			ReadBy:    p.ReadBy,
			RoomID:    p.RoomID,
			ReadAt:    timestamp(p.ReadAt),
		}
	case *core.UserOnline:
		out.Data = proto.EventUserStatus{UserID: p.UserID}
	case *core.UserOffline:
		out.Data = proto.EventUserStatus{UserID: p.UserID}
	case *core.ReceiveError:
		out.Data = proto.EventReceiveError{Code: p.Code, Message: p.Message, Details: p.Details}
	case *core.Pong:
		out.Data = proto.EventPong{Timestamp: timestamp(p.Timestamp)}
	case *core.History:
		messages := make([]proto.EventReceiveMessage, 0, len(p.Messages))
		for i := range p.Messages {
			messages = append(messages, receiveMessage(&p.Messages[i]))
		}
		out.Data = proto.EventHistory{RoomID: p.RoomID, Messages: messages}
	case *core.ChatroomNotification:
		out.Data = proto.EventChatroomNotification{
			RoomID:  p.RoomID,
			Message: p.Message,
			SentBy:  p.SentBy,
			SentAt:  timestamp(p.SentAt),
		}
	}

	return out
}
