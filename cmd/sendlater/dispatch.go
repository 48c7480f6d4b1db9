package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"sendlater/internal/parser"
	"sendlater/internal/service"
	"sendlater/pkg/onebot"
	"sendlater/pkg/onebot/types"
)

// Dispatcher filters inbound events down to bot-addressed commands and
// posts the handler's reply back to the origin group. It is shared by
// the WebSocket stream and the webhook server.
type Dispatcher struct {
	commands *service.CommandService
	client   onebot.Client
	logger   *logrus.Logger
}

func NewDispatcher(commands *service.CommandService, client onebot.Client, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		commands: commands,
		client:   client,
		logger:   logger,
	}
}

func (d *Dispatcher) HandleEvent(ctx context.Context, event *types.Event) {
	if !event.IsGroupMessage() {
		return
	}

	// Only messages addressed to the bot reach the handler, including
	// the bare help keyword.
	gm := event.ParseGroupMessage()
	if !gm.Mentioned {
		return
	}
	if gm.Text != "message" && !parser.IsCommand(gm.Text) {
		return
	}

	in := service.Inbound{
		UserID:   types.FormatID(event.UserID),
		GroupID:  types.FormatID(event.GroupID),
		Text:     gm.Text,
		ReplyRef: gm.ReplyRef,
	}

	reply := d.commands.HandleMessage(ctx, in)
	if reply == "" {
		return
	}

	if _, err := d.client.SendGroupMessage(ctx, in.GroupID, []types.Segment{types.Text(reply)}); err != nil {
		d.logger.WithError(err).WithField("group", in.GroupID).Error("Failed to deliver command reply")
	}
}
