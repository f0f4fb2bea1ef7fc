package main

import (
	"log"

	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/muesli/reflow/wordwrap"
)

const transcriptWidth = 80

// consoleLog mirrors the live transcript to stdout, wrapped for reading.
type consoleLog struct{}

func (consoleLog) Publish(discussionID string, msg broadcast.TurnMessage) {
	name := msg.SpeakerName
	if name == "" {
		name = msg.SpeakerID
	}
	log.Printf("[%s] %s:\n%s", discussionID, name, wordwrap.String(msg.Text, transcriptWidth))
}

// fanout delivers each turn to every attached broadcaster.
type fanout []interface {
	Publish(discussionID string, msg broadcast.TurnMessage)
}

func (f fanout) Publish(discussionID string, msg broadcast.TurnMessage) {
	for _, b := range f {
		b.Publish(discussionID, msg)
	}
}
