// Command protocolschema emits a JSON Schema document describing every
// message type in internal/protocol, for client-side code generation and
// wire-format review outside this module.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/pjtunstall/by-a-thread/internal/protocol"
)

// catalog bundles one field per JSON-framed message type so a single
// reflection pass produces a schema covering the whole wire catalog.
// Snapshot is deliberately absent: it is a hand-rolled binary frame, not a
// JSON envelope, and has no JSON Schema representation.
type catalog struct {
	Passcode                 protocol.Passcode                 `json:"passcode"`
	UsernameRequest           protocol.UsernameRequest          `json:"usernameRequest"`
	ChatSend                  protocol.ChatSend                 `json:"chatSend"`
	StartGame                 protocol.StartGame                `json:"startGame"`
	DifficultyChoice          protocol.DifficultyChoice         `json:"difficultyChoice"`
	BulletFired               protocol.BulletFired              `json:"bulletFired"`
	EnterAfterGameChat        protocol.EnterAfterGameChat       `json:"enterAfterGameChat"`
	InputBatch                protocol.InputBatch               `json:"inputBatch"`
	AuthOk                    protocol.AuthOk                   `json:"authOk"`
	AuthFailed                protocol.AuthFailed               `json:"authFailed"`
	UsernameAck               protocol.UsernameAck              `json:"usernameAck"`
	UsernameReject            protocol.UsernameReject           `json:"usernameReject"`
	ChatBroadcast             protocol.ChatBroadcast            `json:"chatBroadcast"`
	SystemMessage             protocol.SystemMessage            `json:"systemMessage"`
	CountdownStarted          protocol.CountdownStarted         `json:"countdownStarted"`
	GameStarting              protocol.GameStarting             `json:"gameStarting"`
	BulletSpawned             protocol.BulletSpawned            `json:"bulletSpawned"`
	BulletBounced             protocol.BulletBounced            `json:"bulletBounced"`
	BulletExpired             protocol.BulletExpired            `json:"bulletExpired"`
	PlayerHit                 protocol.PlayerHit                `json:"playerHit"`
	PlayerDied                protocol.PlayerDied               `json:"playerDied"`
	Leaderboard               protocol.Leaderboard              `json:"leaderboard"`
	Kick                      protocol.Kick                     `json:"kick"`
	AppointHost               protocol.AppointHost              `json:"appointHost"`
	Roster                    protocol.Roster                   `json:"roster"`
	UserJoined                protocol.UserJoined               `json:"userJoined"`
	UserLeft                  protocol.UserLeft                 `json:"userLeft"`
	BeginDifficultySelection  protocol.BeginDifficultySelection `json:"beginDifficultySelection"`
	DenyDifficultySelection   protocol.DenyDifficultySelection  `json:"denyDifficultySelection"`
	AfterGameRoster           protocol.AfterGameRoster          `json:"afterGameRoster"`
	ServerTime                protocol.ServerTime               `json:"serverTime"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(new(catalog))
	schema.Title = "By a Thread Wire Protocol"
	schema.Description = "Every JSON-framed client/server message exchanged over the reliable and unreliable channels. The binary Snapshot frame is out of scope."
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
