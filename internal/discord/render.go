package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/lfg"
)

const (
	embedColor      = 0x3498db
	buttonsPerRow   = 5
	maxButtonLabel  = 80
	maxFieldName    = 256
	noPlayersYet    = "No players yet"
	sessionTitle    = "🎮 Looking for Group Session"
	sessionSubtitle = "Click the buttons below to join games or add new ones!"
)

func mention(userID string) string {
	return "<@" + userID + ">"
}

func mentions(userIDs []string, sep string) string {
	out := make([]string, len(userIDs))
	for i, id := range userIDs {
		out[i] = mention(id)
	}
	return strings.Join(out, sep)
}

func statusText(s lfg.Status) string {
	switch s {
	case lfg.StatusReady:
		return "✅ Ready!"
	case lfg.StatusWaiting:
		return "⏳ Waiting"
	default:
		return ""
	}
}

// sessionEmbed renders the session message body.
func sessionEmbed(v lfg.View) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       sessionTitle,
		Description: sessionSubtitle,
		Color:       embedColor,
	}
	if len(v.Activities) == 0 {
		embed.Fields = []*discordgo.MessageEmbedField{{
			Name:  "No games yet",
			Value: "Click 'Add Game' to get started!",
		}}
		return embed
	}
	for _, act := range v.Activities {
		players := noPlayersYet
		if len(act.Participants) > 0 {
			players = mentions(act.Participants, ", ")
		}
		name := strings.TrimSpace(fmt.Sprintf("%s %s %s", act.Name, act.Label, statusText(act.Status)))
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  truncate(name, maxFieldName),
			Value: players,
		})
	}
	return embed
}

// sessionComponents renders one join/leave button per activity followed by
// the "Add Game" button, five to a row.
func sessionComponents(v lfg.View) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(v.Activities)+1)
	for i, act := range v.Activities {
		style := discordgo.PrimaryButton
		if act.Full {
			style = discordgo.SecondaryButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    truncate("Join "+act.Name, maxButtonLabel),
			Style:    style,
			CustomID: toggleID(v.SessionID, i),
		})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    "➕ Add Game",
		Style:    discordgo.SuccessButton,
		CustomID: addID(v.SessionID),
	})

	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		rows = append(rows, discordgo.ActionsRow{Components: buttons[start:end]})
	}
	return rows
}

// addGameModal is the form behind the "Add Game" button.
func addGameModal(sessionID string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: addID(sessionID),
		Title:    "Add a New Game",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputName,
					Label:       "Game Name",
					Style:       discordgo.TextInputShort,
					Placeholder: "Enter the game name...",
					Required:    true,
					MaxLength:   100,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputMin,
					Label:       "Minimum Players (Optional)",
					Style:       discordgo.TextInputShort,
					Placeholder: "Leave blank for no minimum",
					MaxLength:   3,
				},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    inputMax,
					Label:       "Maximum Players (Optional)",
					Style:       discordgo.TextInputShort,
					Placeholder: "Leave blank for no maximum",
					MaxLength:   3,
				},
			}},
		},
	}
}

// readyMessage announces an activity reaching its minimum.
func readyMessage(ev lfg.ReadyEvent) string {
	return fmt.Sprintf("🎮 **%s** has reached the minimum number of players! (%d/%d)\nPlayers: %s",
		ev.Activity, len(ev.Participants), ev.MinPlayers, mentions(ev.Participants, " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
