package session

import (
	"math/rand"

	"github.com/mildmongrel/thicket/internal/protocol"
)

const maxChatLen = 100

// maybeChat rolls the chat dice once. global and room chat are independent.
func (s *Session) maybeChat() {
	if s.rng.Float64() < s.cfg.ChatAllProbability {
		s.chat(protocol.ChatScopeAll)
	}
	if s.state == StateInRoom && s.rng.Float64() < s.cfg.ChatRoomProbability {
		s.chat(protocol.ChatScopeRoom)
	}
}

func (s *Session) chat(scope protocol.ChatScope) {
	s.send(&protocol.ChatMessageInd{
		Scope: scope,
		Text:  fillerText(s.rng, s.rng.Intn(maxChatLen)+1),
	})
	s.chats.Add(1)
}

// fillerText returns n random lowercase letters.
func fillerText(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}
