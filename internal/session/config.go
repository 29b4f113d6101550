package session

import (
	"fmt"
	"time"

	"github.com/mildmongrel/thicket/internal/protocol"
)

// Config holds the simulation tuning knobs of a session. none of them are
// protocol requirements; defaults match the behaviour of the original bots.
type Config struct {
	TickInterval      time.Duration `envconfig:"TICK_INTERVAL" default:"1s"`
	KeepAliveInterval time.Duration `envconfig:"KEEP_ALIVE_INTERVAL" default:"25s"`
	ChatCheckInterval time.Duration `envconfig:"CHAT_CHECK_INTERVAL" default:"1s"`
	DraftStartTimeout time.Duration `envconfig:"DRAFT_START_TIMEOUT" default:"60s"`

	ChatAllProbability  float64 `envconfig:"CHAT_ALL_PROBABILITY" default:"0.01"`
	ChatRoomProbability float64 `envconfig:"CHAT_ROOM_PROBABILITY" default:"0.05"`

	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"5s"`
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT" default:"10s"`

	// rooms created when there is nothing to join
	RoomChairCount uint32        `envconfig:"ROOM_CHAIR_COUNT" default:"8"`
	RoomBotCount   uint32        `envconfig:"ROOM_BOT_COUNT" default:"0"`
	RoomRounds     int           `envconfig:"ROOM_ROUNDS" default:"3"`
	RoomSetCode    string        `envconfig:"ROOM_SET_CODE" default:"M19"`
	RoomPickTime   time.Duration `envconfig:"ROOM_PICK_TIME" default:"60s"`
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		KeepAliveInterval: 25 * time.Second,
		ChatCheckInterval: time.Second,
		DraftStartTimeout: 60 * time.Second,

		ChatAllProbability:  0.01,
		ChatRoomProbability: 0.05,

		SendTimeout: 5 * time.Second,
		DialTimeout: 10 * time.Second,

		RoomChairCount: 8,
		RoomBotCount:   0,
		RoomRounds:     3,
		RoomSetCode:    "M19",
		RoomPickTime:   60 * time.Second,
	}
}

// roomConfig builds the attempt-th booster draft room owned by the named
// session. room names must be unique on the server, so every attempt gets
// its own. direction alternates between rounds, left first.
func (c Config) roomConfig(owner string, attempt int) protocol.RoomConfig {
	rounds := make([]protocol.RoundConfig, c.RoomRounds)
	for i := range rounds {
		rounds[i].BoosterRoundConfig = &protocol.BoosterRoundConfig{
			Clockwise: i%2 == 0,
			Time:      uint32(c.RoomPickTime / time.Second),
			CardBundles: []protocol.CardBundle{
				{
					SetCode:        c.RoomSetCode,
					Method:         protocol.CardBundleMethodBooster,
					SetReplacement: true,
				},
			},
		}
	}

	return protocol.RoomConfig{
		Name:       fmt.Sprintf("%s's room %d", owner, attempt),
		ChairCount: c.RoomChairCount,
		BotCount:   c.RoomBotCount,
		Rounds:     rounds,
	}
}
