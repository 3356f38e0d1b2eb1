package session

import "testing"

func TestClientStateDefaultServerAddressAutoSubmits(t *testing.T) {
	c := NewClientState("game.example.com:7777")
	addr, auto := c.EnterServerAddress()
	if !auto || addr != "game.example.com:7777" {
		t.Fatalf("addr=%q auto=%v", addr, auto)
	}
	if c.Substate() != SubstatePasscode {
		t.Fatalf("expected Passcode, got %v", c.Substate())
	}
}

func TestClientStateEmptyDefaultWaitsForInput(t *testing.T) {
	c := NewClientState("")
	_, auto := c.EnterServerAddress()
	if auto {
		t.Fatalf("expected no auto-submit with empty default")
	}
	if c.Substate() != SubstateServerAddress {
		t.Fatalf("expected to remain at ServerAddress, got %v", c.Substate())
	}
	c.SubmitServerAddress()
	if c.Substate() != SubstatePasscode {
		t.Fatalf("expected Passcode after manual submit, got %v", c.Substate())
	}
}

func TestClientStateFullLobbyToGameHappyPath(t *testing.T) {
	c := NewClientState("")
	c.SubmitServerAddress()
	c.SubmitPasscode()
	c.OnConnected()
	c.OnAuthOk()
	c.SubmitUsername()
	c.OnUsernameAck()
	if c.Substate() != SubstateChat {
		t.Fatalf("expected Chat, got %v", c.Substate())
	}
	c.OnBeginDifficultySelection()
	if c.Substate() != SubstateChoosingDifficulty {
		t.Fatalf("expected ChoosingDifficulty, got %v", c.Substate())
	}
	c.OnCountdownStarted()
	if c.Substate() != SubstateCountdown {
		t.Fatalf("expected Countdown, got %v", c.Substate())
	}
	tr := c.OnCountdownComplete()
	if tr.NextState != ClientGame {
		t.Fatalf("expected ClientGame, got %v", tr.NextState)
	}
}

func TestClientStateAuthFailedReturnsToPasscode(t *testing.T) {
	c := NewClientState("")
	c.SubmitServerAddress()
	c.SubmitPasscode()
	c.OnConnected()
	c.OnAuthFailed()
	if c.Substate() != SubstatePasscode {
		t.Fatalf("expected Passcode after auth failure, got %v", c.Substate())
	}
}

func TestClientStateUsernameRejectReturnsToChoosingUsername(t *testing.T) {
	c := NewClientState("")
	c.SubmitServerAddress()
	c.SubmitPasscode()
	c.OnConnected()
	c.OnAuthOk()
	c.SubmitUsername()
	c.OnUsernameReject()
	if c.Substate() != SubstateChoosingUsername {
		t.Fatalf("expected ChoosingUsername after reject, got %v", c.Substate())
	}
}

func TestClientStateGameToDebriefToEnd(t *testing.T) {
	c := NewClientState("")
	c.top = ClientGame

	tr := c.OnGameOver()
	if tr.NextState != ClientAfterGameChat {
		t.Fatalf("expected AfterGameChat, got %v", tr.NextState)
	}

	tr = c.OnLeaderboard([]string{"a", "b"})
	if tr.NextState != ClientEndAfterLeaderboard {
		t.Fatalf("expected EndAfterLeaderboard, got %v", tr.NextState)
	}
}

func TestClientStateDisconnectReachableFromConnectingOnward(t *testing.T) {
	c := NewClientState("")
	c.SubmitServerAddress()
	c.SubmitPasscode()

	tr := c.OnDisconnected("transport_closed")
	if tr.NextState != ClientDisconnected || tr.DisconnectReason != "transport_closed" {
		t.Fatalf("tr = %+v", tr)
	}
}
