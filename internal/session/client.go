package session

// ClientTopState enumerates the client's top-level states.
type ClientTopState int

const (
	ClientLobby ClientTopState = iota
	ClientGame
	ClientTransitioning
	ClientAfterGameChat
	ClientEndAfterLeaderboard
	ClientDisconnected
)

func (s ClientTopState) String() string {
	switch s {
	case ClientLobby:
		return "lobby"
	case ClientGame:
		return "game"
	case ClientTransitioning:
		return "transitioning"
	case ClientAfterGameChat:
		return "after_game_chat"
	case ClientEndAfterLeaderboard:
		return "end_after_leaderboard"
	case ClientDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// LobbySubstate enumerates the substates of ClientLobby.
type LobbySubstate int

const (
	SubstateServerAddress LobbySubstate = iota
	SubstatePasscode
	SubstateConnecting
	SubstateAuthenticating
	SubstateChoosingUsername
	SubstateAwaitingUsernameConfirmation
	SubstateChat
	SubstateChoosingDifficulty
	SubstateCountdown
)

func (s LobbySubstate) String() string {
	switch s {
	case SubstateServerAddress:
		return "server_address"
	case SubstatePasscode:
		return "passcode"
	case SubstateConnecting:
		return "connecting"
	case SubstateAuthenticating:
		return "authenticating"
	case SubstateChoosingUsername:
		return "choosing_username"
	case SubstateAwaitingUsernameConfirmation:
		return "awaiting_username_confirmation"
	case SubstateChat:
		return "chat"
	case SubstateChoosingDifficulty:
		return "choosing_difficulty"
	case SubstateCountdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// ClientTransition is the client-side analogue of Transition.
type ClientTransition struct {
	NextState        ClientTopState
	NextSubstate     LobbySubstate
	Payload          any
	DisconnectReason string
}

// ClientState drives one client's session state machine. DefaultServerAddress
// implements the decided resolution of the ServerAddress open question: when
// non-empty, the ServerAddress substate's entry handler auto-submits it and
// advances straight to Passcode instead of waiting on user input.
type ClientState struct {
	top      ClientTopState
	substate LobbySubstate

	DefaultServerAddress string
	IsHost               bool
}

// NewClientState constructs a ClientState starting in
// ClientLobby/ServerAddress.
func NewClientState(defaultServerAddress string) *ClientState {
	return &ClientState{
		top:                   ClientLobby,
		substate:              SubstateServerAddress,
		DefaultServerAddress: defaultServerAddress,
	}
}

// Top reports the current top-level state.
func (c *ClientState) Top() ClientTopState { return c.top }

// Substate reports the current lobby substate (meaningful only while Top()
// is ClientLobby).
func (c *ClientState) Substate() LobbySubstate { return c.substate }

// EnterServerAddress runs ServerAddress's entry handler: if
// DefaultServerAddress is set, it auto-submits and advances immediately to
// Passcode; otherwise it reports that the substate is waiting on user
// input, per the decided open-question resolution.
func (c *ClientState) EnterServerAddress() (address string, autoSubmitted bool) {
	c.substate = SubstateServerAddress
	if c.DefaultServerAddress != "" {
		c.substate = SubstatePasscode
		return c.DefaultServerAddress, true
	}
	return "", false
}

// SubmitServerAddress advances ServerAddress->Passcode on user input, used
// when EnterServerAddress did not auto-submit.
func (c *ClientState) SubmitServerAddress() {
	if c.substate == SubstateServerAddress {
		c.substate = SubstatePasscode
	}
}

// SubmitPasscode advances Passcode->Connecting.
func (c *ClientState) SubmitPasscode() {
	if c.substate == SubstatePasscode {
		c.substate = SubstateConnecting
	}
}

// OnConnected advances Connecting->Authenticating once the transport
// reports the session admitted.
func (c *ClientState) OnConnected() {
	if c.substate == SubstateConnecting {
		c.substate = SubstateAuthenticating
	}
}

// OnAuthFailed returns Authenticating to Passcode, per the admission
// protocol's retry contract.
func (c *ClientState) OnAuthFailed() {
	if c.substate == SubstateAuthenticating {
		c.substate = SubstatePasscode
	}
}

// OnAuthOk advances Authenticating->ChoosingUsername.
func (c *ClientState) OnAuthOk() {
	if c.substate == SubstateAuthenticating {
		c.substate = SubstateChoosingUsername
	}
}

// SubmitUsername advances ChoosingUsername->AwaitingUsernameConfirmation.
func (c *ClientState) SubmitUsername() {
	if c.substate == SubstateChoosingUsername {
		c.substate = SubstateAwaitingUsernameConfirmation
	}
}

// OnUsernameReject returns AwaitingUsernameConfirmation to ChoosingUsername.
func (c *ClientState) OnUsernameReject() {
	if c.substate == SubstateAwaitingUsernameConfirmation {
		c.substate = SubstateChoosingUsername
	}
}

// OnUsernameAck advances AwaitingUsernameConfirmation->Chat.
func (c *ClientState) OnUsernameAck() {
	if c.substate == SubstateAwaitingUsernameConfirmation {
		c.substate = SubstateChat
	}
}

// OnBeginDifficultySelection advances Chat->ChoosingDifficulty, gated by the
// server's host-only BeginDifficultySelection message (callers must not
// call this on DenyDifficultySelection).
func (c *ClientState) OnBeginDifficultySelection() {
	if c.substate == SubstateChat {
		c.substate = SubstateChoosingDifficulty
	}
}

// OnCountdownStarted advances (ChoosingDifficulty or Chat)->Countdown on the
// server's broadcast CountdownStarted message.
func (c *ClientState) OnCountdownStarted() {
	if c.substate == SubstateChoosingDifficulty || c.substate == SubstateChat {
		c.substate = SubstateCountdown
	}
}

// OnCountdownComplete performs Lobby->Game.
func (c *ClientState) OnCountdownComplete() ClientTransition {
	if c.top != ClientLobby || c.substate != SubstateCountdown {
		return ClientTransition{NextState: c.top}
	}
	c.top = ClientGame
	return ClientTransition{NextState: ClientGame}
}

// OnGameOver performs Game->Transitioning->AfterGameChat, collapsing the
// transient Transitioning state (used only to swap the live Game value into
// the AfterGameChat constructor) into a single call, since Transitioning is
// never observable to callers outside that swap moment.
func (c *ClientState) OnGameOver() ClientTransition {
	if c.top != ClientGame {
		return ClientTransition{NextState: c.top}
	}
	c.top = ClientAfterGameChat
	return ClientTransition{NextState: ClientAfterGameChat}
}

// OnLeaderboard performs AfterGameChat->EndAfterLeaderboard.
func (c *ClientState) OnLeaderboard(entries any) ClientTransition {
	if c.top != ClientAfterGameChat {
		return ClientTransition{NextState: c.top}
	}
	c.top = ClientEndAfterLeaderboard
	return ClientTransition{NextState: ClientEndAfterLeaderboard, Payload: entries}
}

// OnDisconnected is reachable from Connecting onward; Disconnected is
// terminal aside from user-initiated exit.
func (c *ClientState) OnDisconnected(reason string) ClientTransition {
	c.top = ClientDisconnected
	return ClientTransition{NextState: ClientDisconnected, DisconnectReason: reason}
}
