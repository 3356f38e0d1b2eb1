package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrVersionMismatch is returned by the decode dispatchers when the
// envelope's version byte does not match Version.
type ErrVersionMismatch struct {
	Got int
}

func (e ErrVersionMismatch) Error() string {
	return fmt.Sprintf("protocol: version mismatch: got %d, want %d", e.Got, Version)
}

// DecodeClientMessage inspects data's envelope and unmarshals it into the
// concrete client->server message type its Type discriminator names,
// returning it as the any values defined in this package. Unknown types are
// a DecodeError per the error handling design: log and skip, never a panic.
func DecodeClientMessage(data []byte) (any, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Ver != Version {
		return nil, ErrVersionMismatch{Got: env.Ver}
	}

	switch env.Type {
	case TypePasscode:
		var m Passcode
		return decodeInto(data, &m)
	case TypeUsernameRequest:
		var m UsernameRequest
		return decodeInto(data, &m)
	case TypeChatSend:
		var m ChatSend
		return decodeInto(data, &m)
	case TypeStartGame:
		var m StartGame
		return decodeInto(data, &m)
	case TypeDifficultyChoice:
		var m DifficultyChoice
		return decodeInto(data, &m)
	case TypeBulletFired:
		var m BulletFired
		return decodeInto(data, &m)
	case TypeEnterAfterGameChat:
		var m EnterAfterGameChat
		return decodeInto(data, &m)
	case TypeInputBatch:
		var m InputBatch
		return decodeInto(data, &m)
	default:
		return nil, fmt.Errorf("protocol: unknown client message type %q", env.Type)
	}
}

// DecodeServerMessage is DecodeClientMessage's server->client counterpart.
func DecodeServerMessage(data []byte) (any, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Ver != Version {
		return nil, ErrVersionMismatch{Got: env.Ver}
	}

	switch env.Type {
	case TypeAuthOk:
		var m AuthOk
		return decodeInto(data, &m)
	case TypeAuthFailed:
		var m AuthFailed
		return decodeInto(data, &m)
	case TypeUsernameAck:
		var m UsernameAck
		return decodeInto(data, &m)
	case TypeUsernameReject:
		var m UsernameReject
		return decodeInto(data, &m)
	case TypeChatBroadcast:
		var m ChatBroadcast
		return decodeInto(data, &m)
	case TypeSystemMessage:
		var m SystemMessage
		return decodeInto(data, &m)
	case TypeCountdownStarted:
		var m CountdownStarted
		return decodeInto(data, &m)
	case TypeGameStarting:
		var m GameStarting
		return decodeInto(data, &m)
	case TypeBulletSpawned:
		var m BulletSpawned
		return decodeInto(data, &m)
	case TypeBulletBounced:
		var m BulletBounced
		return decodeInto(data, &m)
	case TypeBulletExpired:
		var m BulletExpired
		return decodeInto(data, &m)
	case TypePlayerHit:
		var m PlayerHit
		return decodeInto(data, &m)
	case TypePlayerDied:
		var m PlayerDied
		return decodeInto(data, &m)
	case TypeLeaderboard:
		var m Leaderboard
		return decodeInto(data, &m)
	case TypeKick:
		var m Kick
		return decodeInto(data, &m)
	case TypeAppointHost:
		var m AppointHost
		return decodeInto(data, &m)
	case TypeRoster:
		var m Roster
		return decodeInto(data, &m)
	case TypeUserJoined:
		var m UserJoined
		return decodeInto(data, &m)
	case TypeUserLeft:
		var m UserLeft
		return decodeInto(data, &m)
	case TypeBeginDifficultySelection:
		var m BeginDifficultySelection
		return decodeInto(data, &m)
	case TypeDenyDifficultySelection:
		var m DenyDifficultySelection
		return decodeInto(data, &m)
	case TypeAfterGameRoster:
		var m AfterGameRoster
		return decodeInto(data, &m)
	case TypeServerTime:
		var m ServerTime
		return decodeInto(data, &m)
	default:
		return nil, fmt.Errorf("protocol: unknown server message type %q", env.Type)
	}
}

func decodeInto[T any](data []byte, out *T) (T, error) {
	if err := json.Unmarshal(data, out); err != nil {
		var zero T
		return zero, err
	}
	return *out, nil
}
