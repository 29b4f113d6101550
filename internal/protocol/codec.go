package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// NOTE: scalars are always written, even when zero, the way a proto2
// encoder treats set optional fields. decoding leaves absent fields zero.

func (m *KeepAliveInd) appendTo(b []byte) []byte { return b }

func (m *KeepAliveInd) unmarshal(b []byte) error {
	return walk(b, skipAll)
}

func (m *ChatMessageInd) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Scope))
	b = appendString(b, 2, m.Text)
	return b
}

func (m *ChatMessageInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint32
			n, err := consumeUint32(typ, b, &v)
			m.Scope = ChatScope(v)
			return n, err
		case 2:
			return consumeString(typ, b, &m.Text)
		}
		return 0, nil
	})
}

func (m *LoginReq) appendTo(b []byte) []byte {
	return appendString(b, 1, m.Name)
}

func (m *LoginReq) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, b, &m.Name)
		}
		return 0, nil
	})
}

func (m *CreateRoomReq) appendTo(b []byte) []byte {
	return appendMessage(b, 1, m.RoomConfig.appendTo(nil))
}

func (m *CreateRoomReq) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeMessage(typ, b, &m.RoomConfig)
		}
		return 0, nil
	})
}

func (m *JoinRoomReq) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.RoomID))
	if m.Password != "" {
		b = appendString(b, 2, m.Password)
	}
	return b
}

func (m *JoinRoomReq) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.RoomID)
		case 2:
			return consumeString(typ, b, &m.Password)
		}
		return 0, nil
	})
}

func (m *PlayerReadyInd) appendTo(b []byte) []byte {
	return appendBool(b, 1, m.Ready)
}

func (m *PlayerReadyInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBool(typ, b, &m.Ready)
		}
		return 0, nil
	})
}

func (m *PlayerCardSelectionReq) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.PackID))
	b = appendMessage(b, 2, m.Card.appendTo(nil))
	return b
}

func (m *PlayerCardSelectionReq) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.PackID)
		case 2:
			return consumeMessage(typ, b, &m.Card)
		}
		return 0, nil
	})
}

func (m *GreetingInd) appendTo(b []byte) []byte {
	b = appendString(b, 1, m.ServerName)
	b = appendString(b, 2, m.ServerVersion)
	return b
}

func (m *GreetingInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.ServerName)
		case 2:
			return consumeString(typ, b, &m.ServerVersion)
		}
		return 0, nil
	})
}

func (m *LoginRsp) appendTo(b []byte) []byte {
	return appendUint(b, 1, uint64(m.Result))
}

func (m *LoginRsp) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var v uint32
			n, err := consumeUint32(typ, b, &v)
			m.Result = LoginResult(v)
			return n, err
		}
		return 0, nil
	})
}

func (m *RoomsInfoInd) appendTo(b []byte) []byte {
	for i := range m.AddedRooms {
		b = appendMessage(b, 1, m.AddedRooms[i].appendTo(nil))
	}
	for _, id := range m.RemovedRooms {
		b = appendUint(b, 2, uint64(id))
	}
	for i := range m.PlayerCounts {
		b = appendMessage(b, 3, m.PlayerCounts[i].appendTo(nil))
	}
	return b
}

func (m *RoomsInfoInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var room RoomInfo
			n, err := consumeMessage(typ, b, &room)
			if err == nil {
				m.AddedRooms = append(m.AddedRooms, room)
			}
			return n, err
		case 2:
			if typ == protowire.BytesType {
				return consumePackedUint32(b, &m.RemovedRooms)
			}
			var id uint32
			n, err := consumeUint32(typ, b, &id)
			if err == nil {
				m.RemovedRooms = append(m.RemovedRooms, id)
			}
			return n, err
		case 3:
			var count RoomPlayerCount
			n, err := consumeMessage(typ, b, &count)
			if err == nil {
				m.PlayerCounts = append(m.PlayerCounts, count)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *CreateRoomSuccessRsp) appendTo(b []byte) []byte {
	return appendUint(b, 1, uint64(m.RoomID))
}

func (m *CreateRoomSuccessRsp) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeUint32(typ, b, &m.RoomID)
		}
		return 0, nil
	})
}

func (m *CreateRoomFailureRsp) appendTo(b []byte) []byte {
	return appendUint(b, 1, uint64(m.Result))
}

func (m *CreateRoomFailureRsp) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var v uint32
			n, err := consumeUint32(typ, b, &v)
			m.Result = CreateRoomResult(v)
			return n, err
		}
		return 0, nil
	})
}

func (m *JoinRoomSuccessRspInd) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.RoomID))
	b = appendUint(b, 2, uint64(m.ChairIndex))
	return b
}

func (m *JoinRoomSuccessRspInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.RoomID)
		case 2:
			return consumeUint32(typ, b, &m.ChairIndex)
		}
		return 0, nil
	})
}

func (m *JoinRoomFailureRsp) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.Result))
	b = appendUint(b, 2, uint64(m.RoomID))
	return b
}

func (m *JoinRoomFailureRsp) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint32
			n, err := consumeUint32(typ, b, &v)
			m.Result = JoinRoomResult(v)
			return n, err
		case 2:
			return consumeUint32(typ, b, &m.RoomID)
		}
		return 0, nil
	})
}

func (m *PlayerCurrentPackInd) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.PackID))
	for i := range m.Cards {
		b = appendMessage(b, 2, m.Cards[i].appendTo(nil))
	}
	return b
}

func (m *PlayerCurrentPackInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.PackID)
		case 2:
			var card Card
			n, err := consumeMessage(typ, b, &card)
			if err == nil {
				m.Cards = append(m.Cards, card)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *RoomStageInd) appendTo(b []byte) []byte {
	return appendBool(b, 1, m.Complete)
}

func (m *RoomStageInd) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBool(typ, b, &m.Complete)
		}
		return 0, nil
	})
}

func (m *Card) appendTo(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.SetCode)
	return b
}

func (m *Card) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Name)
		case 2:
			return consumeString(typ, b, &m.SetCode)
		}
		return 0, nil
	})
}

func (m *RoomInfo) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.RoomID))
	b = appendMessage(b, 2, m.RoomConfig.appendTo(nil))
	return b
}

func (m *RoomInfo) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.RoomID)
		case 2:
			return consumeMessage(typ, b, &m.RoomConfig)
		}
		return 0, nil
	})
}

func (m *RoomPlayerCount) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(m.RoomID))
	b = appendUint(b, 2, uint64(m.PlayerCount))
	return b
}

func (m *RoomPlayerCount) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.RoomID)
		case 2:
			return consumeUint32(typ, b, &m.PlayerCount)
		}
		return 0, nil
	})
}

func (m *RoomConfig) appendTo(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	b = appendBool(b, 2, m.PasswordProtected)
	b = appendUint(b, 3, uint64(m.ChairCount))
	b = appendUint(b, 4, uint64(m.BotCount))
	for i := range m.Rounds {
		b = appendMessage(b, 5, m.Rounds[i].appendTo(nil))
	}
	return b
}

func (m *RoomConfig) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.Name)
		case 2:
			return consumeBool(typ, b, &m.PasswordProtected)
		case 3:
			return consumeUint32(typ, b, &m.ChairCount)
		case 4:
			return consumeUint32(typ, b, &m.BotCount)
		case 5:
			var round RoundConfig
			n, err := consumeMessage(typ, b, &round)
			if err == nil {
				m.Rounds = append(m.Rounds, round)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *RoundConfig) appendTo(b []byte) []byte {
	if m.BoosterRoundConfig != nil {
		b = appendMessage(b, 1, m.BoosterRoundConfig.appendTo(nil))
	}
	return b
}

func (m *RoundConfig) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			m.BoosterRoundConfig = &BoosterRoundConfig{}
			return consumeMessage(typ, b, m.BoosterRoundConfig)
		}
		return 0, nil
	})
}

func (m *BoosterRoundConfig) appendTo(b []byte) []byte {
	b = appendBool(b, 1, m.Clockwise)
	b = appendUint(b, 2, uint64(m.Time))
	for i := range m.CardBundles {
		b = appendMessage(b, 3, m.CardBundles[i].appendTo(nil))
	}
	return b
}

func (m *BoosterRoundConfig) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(typ, b, &m.Clockwise)
		case 2:
			return consumeUint32(typ, b, &m.Time)
		case 3:
			var bundle CardBundle
			n, err := consumeMessage(typ, b, &bundle)
			if err == nil {
				m.CardBundles = append(m.CardBundles, bundle)
			}
			return n, err
		}
		return 0, nil
	})
}

func (m *CardBundle) appendTo(b []byte) []byte {
	b = appendString(b, 1, m.SetCode)
	b = appendUint(b, 2, uint64(m.Method))
	b = appendBool(b, 3, m.SetReplacement)
	return b
}

func (m *CardBundle) unmarshal(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.SetCode)
		case 2:
			var v uint32
			n, err := consumeUint32(typ, b, &v)
			m.Method = CardBundleMethod(v)
			return n, err
		case 3:
			return consumeBool(typ, b, &m.SetReplacement)
		}
		return 0, nil
	})
}

// consumePackedUint32 accepts the packed form of a repeated uint32 field,
// which proto3 encoders emit by default.
func consumePackedUint32(b []byte, dst *[]uint32) (int, error) {
	packed, n, err := consumeBytes(protowire.BytesType, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		id, err := toUint32(v)
		if err != nil {
			return 0, err
		}
		*dst = append(*dst, id)
		packed = packed[m:]
	}
	return n, nil
}

func skipAll(protowire.Number, protowire.Type, []byte) (int, error) {
	return 0, nil
}
